package exaconf

import (
	"os"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
	"github.com/cuemby/exadt/pkg/passwd"
)

func (c *EXAConf) userSections() []*configobj.Section {
	if sec := c.doc.Section("Users"); sec != nil {
		return sec.Sections()
	}
	return nil
}

func (c *EXAConf) groupSections() []*configobj.Section {
	if sec := c.doc.Section("Groups"); sec != nil {
		return sec.Sections()
	}
	return nil
}

func sectionID(sec *configobj.Section) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(sec.String("ID", "")))
	if err != nil {
		return 0, configErrorf("invalid ID in section '%s'", sec.Name())
	}
	return id, nil
}

// Users returns all users in file order.
func (c *EXAConf) Users() ([]UserConfig, error) {
	var out []UserConfig
	for _, sec := range c.userSections() {
		id, err := sectionID(sec)
		if err != nil {
			return nil, err
		}
		login, err := AsBool(sec.String("LoginEnabled", "False"))
		if err != nil {
			return nil, err
		}
		out = append(out, UserConfig{
			Name:             sec.Name(),
			ID:               id,
			Group:            sec.String("Group", ""),
			LoginEnabled:     login,
			Passwd:           sec.String("Passwd", ""),
			AdditionalGroups: sec.List("AdditionalGroups", ","),
			AuthorizedKeys:   sec.List("AuthorizedKeys", ","),
		})
	}
	return out, nil
}

// Groups returns all groups in file order.
func (c *EXAConf) Groups() ([]GroupConfig, error) {
	var out []GroupConfig
	for _, sec := range c.groupSections() {
		id, err := sectionID(sec)
		if err != nil {
			return nil, err
		}
		out = append(out, GroupConfig{Name: sec.Name(), ID: id})
	}
	return out, nil
}

// UserExists reports whether the user exists or the name is reserved.
func (c *EXAConf) UserExists(name string) bool {
	if _, ok := reservedUsers[name]; ok {
		return true
	}
	return c.userSection(name) != nil
}

// UIDExists reports whether a user has the UID or the UID is reserved.
func (c *EXAConf) UIDExists(uid int) bool {
	for _, r := range reservedUsers {
		if r == uid {
			return true
		}
	}
	for _, sec := range c.userSections() {
		if id, err := sectionID(sec); err == nil && id == uid {
			return true
		}
	}
	return false
}

// GroupExists reports whether the group exists or the name is reserved.
func (c *EXAConf) GroupExists(name string) bool {
	if _, ok := reservedGroups[name]; ok {
		return true
	}
	return c.groupSection(name) != nil
}

// GIDExists reports whether a group has the GID or the GID is reserved.
func (c *EXAConf) GIDExists(gid int) bool {
	for _, r := range reservedGroups {
		if r == gid {
			return true
		}
	}
	for _, sec := range c.groupSections() {
		if id, err := sectionID(sec); err == nil && id == gid {
			return true
		}
	}
	return false
}

func (c *EXAConf) userSection(name string) *configobj.Section {
	return c.doc.Lookup("Users", name)
}

func (c *EXAConf) groupSection(name string) *configobj.Section {
	return c.doc.Lookup("Groups", name)
}

// ToUID resolves a user name or numeric string to a UID.
func (c *EXAConf) ToUID(user string) (int, error) {
	if uid, err := strconv.Atoi(user); err == nil {
		return uid, nil
	}
	if sec := c.userSection(user); sec != nil {
		return sectionID(sec)
	}
	return 0, configErrorf("user '%s' does not exist in EXAConf", user)
}

// ToUserName resolves a numeric UID string to a user name. Other strings
// are returned unchanged.
func (c *EXAConf) ToUserName(user string) (string, error) {
	uid, err := strconv.Atoi(user)
	if err != nil {
		return user, nil
	}
	for _, sec := range c.userSections() {
		if id, err := sectionID(sec); err == nil && id == uid {
			return sec.Name(), nil
		}
	}
	return "", configErrorf("user with ID %d does not exist in EXAConf", uid)
}

// ToGID resolves a group name or numeric string to a GID.
func (c *EXAConf) ToGID(group string) (int, error) {
	if gid, err := strconv.Atoi(group); err == nil {
		return gid, nil
	}
	if sec := c.groupSection(group); sec != nil {
		return sectionID(sec)
	}
	return 0, configErrorf("group '%s' does not exist in EXAConf", group)
}

// ToGroupName resolves a numeric GID string to a group name. Other strings
// are returned unchanged.
func (c *EXAConf) ToGroupName(group string) (string, error) {
	gid, err := strconv.Atoi(group)
	if err != nil {
		return group, nil
	}
	for _, sec := range c.groupSections() {
		if id, err := sectionID(sec); err == nil && id == gid {
			return sec.Name(), nil
		}
	}
	return "", configErrorf("group with ID %d does not exist in EXAConf", gid)
}

// UserInGroup reports whether the user (name or UID) has one of the groups
// as main or additional group.
func (c *EXAConf) UserInGroup(user string, groups ...string) (bool, error) {
	name, err := c.ToUserName(user)
	if err != nil {
		return false, err
	}
	sec := c.userSection(name)
	if sec == nil {
		return false, configErrorf("user '%s' does not exist in EXAConf", name)
	}
	if contains(groups, sec.String("Group", "")) {
		return true, nil
	}
	for _, g := range sec.List("AdditionalGroups", ",") {
		if contains(groups, g) {
			return true, nil
		}
	}
	return false, nil
}

// UserRemoteVolumesFile returns the path of the remote volume file of the
// user inside the container.
func (c *EXAConf) UserRemoteVolumesFile(user string) (string, error) {
	name, err := c.ToUserName(user)
	if err != nil {
		return "", err
	}
	uid, err := c.ToUID(name)
	if err != nil {
		return "", err
	}
	return ContainerRoot + "/" + RemoteVolumesDir + name + "." + strconv.Itoa(uid) + ".conf", nil
}

// checkOwner fails if the owner's UID or GID is unknown.
func (c *EXAConf) checkOwner(what, name string, owner Owner) error {
	if !c.UIDExists(owner.UID) {
		return configErrorf("can't add %s '%s' because owner with UID %d doesn't exist", what, name, owner.UID)
	}
	if !c.GIDExists(owner.GID) {
		return configErrorf("can't add %s '%s' because owner group with GID %d doesn't exist", what, name, owner.GID)
	}
	return nil
}

func encodePasswd(pw string, force bool) string {
	if force || !passwd.IsShadowEncoded(pw) {
		return passwd.EncodeShadow(pw)
	}
	return pw
}

// AddUser adds a user. Name and ID must be unused and not reserved, the
// main group must exist.
func (tx *Tx) AddUser(spec UserSpec) error {
	c := tx.c
	if c.UserExists(spec.Name) {
		return configErrorf("user '%s' can't be added because a user with that name already exists (or name is reserved)", spec.Name)
	}
	if c.UIDExists(spec.ID) {
		return configErrorf("user '%s' can't be added because a user with ID %d already exists (or ID is reserved)", spec.Name, spec.ID)
	}
	group, err := c.ToGroupName(spec.Group)
	if err != nil {
		return err
	}
	if !c.GroupExists(group) {
		return configErrorf("main group '%s' of user '%s' does not exist", group, spec.Name)
	}

	users := c.doc.EnsureSection("Users")
	sec, err := users.AddSection(spec.Name)
	if err != nil {
		return configErrorf("can't add user '%s': %v", spec.Name, err)
	}
	sec.Set("ID", strconv.Itoa(spec.ID))
	sec.Set("Group", group)
	sec.Set("LoginEnabled", boolStr(spec.LoginEnabled))
	if spec.Passwd != nil {
		sec.Set("Passwd", encodePasswd(*spec.Passwd, spec.EncodePasswd))
	}
	if len(spec.AdditionalGroups) > 0 {
		sec.SetList("AdditionalGroups", spec.AdditionalGroups, ", ")
	}
	if len(spec.AuthorizedKeys) > 0 {
		sec.SetList("AuthorizedKeys", spec.AuthorizedKeys, ", ")
	}
	c.doc.SetComments("Users", "")
	return nil
}

// RemoveUser removes a user.
func (tx *Tx) RemoveUser(name string) error {
	users := tx.c.doc.Section("Users")
	if users == nil || !users.DeleteSection(name) {
		return configErrorf("user '%s' can't be removed because it doesn't exist", name)
	}
	return nil
}

// SetUserConf changes the given user (or all users with the wildcard). A
// missing user is added, which requires ID, Group and LoginEnabled.
func (tx *Tx) SetUserConf(name string, upd UserUpdate, opts UserUpdateOptions) error {
	c := tx.c
	if !isWildcard(name) && c.userSection(name) == nil {
		if upd.ID == nil || upd.Group == nil || upd.LoginEnabled == nil {
			return configErrorf("user '%s' does not exist and can't be created without ID, group and login flag", name)
		}
		return tx.AddUser(UserSpec{
			Name:             name,
			ID:               *upd.ID,
			Group:            *upd.Group,
			LoginEnabled:     *upd.LoginEnabled,
			Passwd:           upd.Passwd,
			EncodePasswd:     opts.EncodePasswd,
			AdditionalGroups: upd.AdditionalGroups,
			AuthorizedKeys:   upd.AuthorizedKeys,
		})
	}

	for _, sec := range c.userSections() {
		if !isWildcard(name) && sec.Name() != name {
			continue
		}
		if upd.ID != nil {
			if id, _ := sectionID(sec); id != *upd.ID {
				return configErrorf("the ID of user '%s' can't be changed", sec.Name())
			}
		}
		if upd.Group != nil {
			group, err := c.ToGroupName(*upd.Group)
			if err != nil {
				return err
			}
			if !c.GroupExists(group) {
				return configErrorf("main group '%s' of user '%s' does not exist", group, sec.Name())
			}
			sec.Set("Group", group)
		}
		if upd.LoginEnabled != nil {
			sec.Set("LoginEnabled", boolStr(*upd.LoginEnabled))
		}
		if upd.Passwd != nil {
			sec.Set("Passwd", encodePasswd(*upd.Passwd, opts.EncodePasswd))
		}
		if upd.AdditionalGroups != nil {
			groups := upd.AdditionalGroups
			if opts.ExtendGroups {
				groups = union(sec.List("AdditionalGroups", ","), groups)
			}
			sec.SetList("AdditionalGroups", groups, ", ")
		}
		if upd.AuthorizedKeys != nil {
			keys := upd.AuthorizedKeys
			if opts.ExtendKeys {
				keys = union(sec.List("AuthorizedKeys", ","), keys)
			}
			sec.SetList("AuthorizedKeys", keys, ", ")
		}
	}
	return nil
}

// AddGroup adds a group. Name and GID must be unused and not reserved.
func (tx *Tx) AddGroup(name string, gid int) error {
	c := tx.c
	if c.GroupExists(name) {
		return configErrorf("group '%s' can't be added because a group with that name already exists (or name is reserved)", name)
	}
	if c.GIDExists(gid) {
		return configErrorf("group '%s' can't be added because a group with ID %d already exists (or ID is reserved)", name, gid)
	}
	groups := c.doc.EnsureSection("Groups")
	sec, err := groups.AddSection(name)
	if err != nil {
		return configErrorf("can't add group '%s': %v", name, err)
	}
	sec.Set("ID", strconv.Itoa(gid))
	c.doc.SetComments("Groups", "")
	return nil
}

// RemoveGroup removes a group.
func (tx *Tx) RemoveGroup(name string) error {
	groups := tx.c.doc.Section("Groups")
	if groups == nil || !groups.DeleteSection(name) {
		return configErrorf("group '%s' can't be removed because it doesn't exist", name)
	}
	return nil
}

// SetGroupConf changes the GID of a group or adds the group if it's
// missing.
func (tx *Tx) SetGroupConf(name string, upd GroupUpdate) error {
	c := tx.c
	if !isWildcard(name) && c.groupSection(name) == nil {
		if upd.ID == nil {
			return configErrorf("group '%s' does not exist and can't be created without ID", name)
		}
		return tx.AddGroup(name, *upd.ID)
	}
	if upd.ID == nil {
		return nil
	}
	for _, sec := range c.groupSections() {
		if !isWildcard(name) && sec.Name() != name {
			continue
		}
		if id, _ := sectionID(sec); id != *upd.ID && c.GIDExists(*upd.ID) {
			return configErrorf("group '%s' can't get ID %d because it's already in use", sec.Name(), *upd.ID)
		}
		sec.Set("ID", strconv.Itoa(*upd.ID))
	}
	return nil
}

// addDefaultGroups adds root, exausers (with defGID) and the admin groups
// unless their GIDs are taken.
func (tx *Tx) addDefaultGroups(defGID int) error {
	defaults := []struct {
		name string
		gid  int
	}{
		{"root", 0},
		{"exausers", defGID},
		{"exadbadm", DefaultGroupsStartID + 1},
		{"exastoradm", DefaultGroupsStartID + 2},
		{"exabfsadm", DefaultGroupsStartID + 3},
		{"exaadm", DefaultGroupsStartID + 4},
	}
	for _, g := range defaults {
		if tx.c.GIDExists(g.gid) || tx.c.GroupExists(g.name) {
			continue
		}
		if err := tx.AddGroup(g.name, g.gid); err != nil {
			return err
		}
	}
	return nil
}

// addDefaultUsers adds root and "exadefusr" (with defUID), both members
// of all "exa" groups.
func (tx *Tx) addDefaultUsers(defUID, defGID int) error {
	c := tx.c
	groups, err := c.Groups()
	if err != nil {
		return err
	}
	var exaGroups []string
	for _, g := range groups {
		if strings.HasPrefix(g.Name, "exa") {
			exaGroups = append(exaGroups, g.Name)
		}
	}

	if !c.UIDExists(0) && !c.UserExists("root") {
		if err := tx.AddUser(UserSpec{
			Name:             "root",
			ID:               0,
			Group:            "root",
			LoginEnabled:     true,
			AdditionalGroups: exaGroups,
		}); err != nil {
			return err
		}
	}

	if !c.UIDExists(defUID) && !c.UserExists("exadefusr") {
		group := "exausers"
		if !c.GroupExists(group) {
			if group, err = c.ToGroupName(strconv.Itoa(defGID)); err != nil {
				return err
			}
		}
		var additional []string
		for _, g := range exaGroups {
			if g != group && g != "exausers" {
				additional = append(additional, g)
			}
		}
		if err := tx.AddUser(UserSpec{
			Name:             "exadefusr",
			ID:               defUID,
			Group:            group,
			LoginEnabled:     false,
			AdditionalGroups: additional,
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddMissingUsersAndGroups adds the default users and groups and creates
// a user and group for every owner of a database or volume that doesn't
// exist yet.
func (tx *Tx) AddMissingUsersAndGroups() error {
	c := tx.c
	defOwner := Owner{UID: os.Geteuid(), GID: os.Getegid()}
	if dbs := c.doc.SectionsOfKind(string(KindDB)); len(dbs) > 0 {
		if o, err := ParseOwner(dbs[0].String("Owner", "")); err == nil {
			defOwner = o
		}
	}
	if err := tx.addDefaultGroups(defOwner.GID); err != nil {
		return err
	}
	if err := tx.addDefaultUsers(defOwner.UID, defOwner.GID); err != nil {
		return err
	}

	userSuffix, groupSuffix := 1, 1
	for _, kind := range []EntityKind{KindDB, KindEXAVolume, KindRemoteVolume} {
		for _, sec := range c.doc.SectionsOfKind(string(kind)) {
			owner, err := ParseOwner(sec.String("Owner", ""))
			if err != nil {
				return err
			}
			if !c.GIDExists(owner.GID) {
				gname := "exausers" + strconv.Itoa(groupSuffix)
				groupSuffix++
				c.logger.Info().Str("group", gname).Int("gid", owner.GID).Str("owner_of", sec.ID()).Msg("Adding missing group")
				if err := tx.AddGroup(gname, owner.GID); err != nil {
					return err
				}
			}
			if !c.UIDExists(owner.UID) {
				uname := "exadefusr" + strconv.Itoa(userSuffix)
				userSuffix++
				c.logger.Info().Str("user", uname).Int("uid", owner.UID).Str("owner_of", sec.ID()).Msg("Adding missing user")
				if err := tx.AddUser(UserSpec{
					Name:  uname,
					ID:    owner.UID,
					Group: strconv.Itoa(owner.GID),
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// union appends the elements of b missing in a, keeping the order.
func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, e := range b {
		if !contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}
