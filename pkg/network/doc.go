/*
Package network wires the node containers of a cluster into host networks.

Every EXAConf network (the private one, and the public one if configured)
becomes a Linux bridge. Each node gets a named network namespace that is
attached to the bridges with veth pairs and the node addresses from EXAConf.
The container then joins that namespace. Interface names are derived from an
xxhash of the network and namespace names, which keeps them within the 15
character limit of the kernel and stable across runs.

	            host
	 ┌──────────────────────────────────────────────┐
	 │  exb<hash> (MyCluster_priv, 10.10.10.1/24)   │
	 │     │veh<hash>            │veh<hash>          │
	 │ ┌───┴──────────────┐  ┌───┴──────────────┐   │
	 │ │netns exadt-..-11 │  │netns exadt-..-12 │   │
	 │ │eth0 10.10.10.11  │  │eth0 10.10.10.12  │   │
	 │ └──────────────────┘  └──────────────────┘   │
	 └──────────────────────────────────────────────┘

Exposed ports are published on the host with iptables by PortPublisher:

	PREROUTING (nat):  -p tcp --dport 8899 -j DNAT --to-destination 10.10.10.11:8888
	POSTROUTING (nat): -p tcp -d 10.10.10.11 --dport 8888 -j MASQUERADE
	FORWARD (filter):  -p tcp -d 10.10.10.11 --dport 8888 -j ACCEPT

The publisher keeps the container address with the ports so the exact rules
can be deleted again.

All commands go through a Runner, so tests can record them instead of
touching the host.
*/
package network
