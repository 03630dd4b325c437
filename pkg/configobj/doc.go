/*
Package configobj reads and writes the sectioned text format used by EXAConf.

A document is a tree of named sections holding ordered "Key = Value"
scalars. Section headers use one bracket pair per nesting level and child
entries are indented by four spaces per level:

	[Global]
	    ClusterName = test
	    Revision = 3
	# An EXAStorage volume
	[EXAVolume : DataVolume1]
	    Type = data
	[Node : 11]
	    PrivateNet = 10.10.10.11/24
	    [[Disk : disk1]]
	        Devices = dev.1

# Values

All values are plain strings; list-valued fields are stored joined with ','
or ':' and split again by the caller. Values are never interpreted. A value
that contains '#' or surrounding whitespace is written in quotes.

# Comments

Full-line comments and blank lines belong to the entry that follows them,
comments after the last entry are kept as the document's final comment and
an inline comment may follow a value. All of them survive a round trip.

# Determinism

Bytes never reorders entries: scalars are written in insertion order, then
sub-sections in insertion order. Serializing the same content always gives
the same bytes, and Parse(Bytes(d)) serializes back to Bytes(d). Callers
that hash a document rely on this.
*/
package configobj
