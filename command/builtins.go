package command

// Builtin describes one fixed command. Handlers are bound by Name in the
// dispatch package.
type Builtin struct {
	Name    string
	Aliases []string
	Kind    Kind
	Access  Access
	Usage   string
	Help    string
}

// Builtins is the fixed built-in table. Names and aliases are reserved and
// can never be used for custom commands.
var Builtins = []Builtin{
	{Name: "help", Aliases: []string{"bot"}, Kind: KindBuiltin, Access: AccessUser,
		Usage: "help", Help: "what this bot is"},
	{Name: "commands", Kind: KindBuiltin, Access: AccessUser,
		Usage: "commands", Help: "list available commands"},
	{Name: "links", Kind: KindBuiltin, Access: AccessUser,
		Usage: "links", Help: "useful links"},
	{Name: "ban", Kind: KindBuiltin, Access: AccessUser,
		Usage: "ban <target>", Help: "ban someone, sort of"},
	{Name: "crate", Aliases: []string{"crates"}, Kind: KindBuiltin, Access: AccessUser,
		Usage: "crate <name>", Help: "look up a Rust crate"},
	{Name: "doc", Aliases: []string{"docs"}, Kind: KindBuiltin, Access: AccessUser,
		Usage: "doc <path>", Help: "link the docs of a Rust item"},
	{Name: "today", Kind: KindBuiltin, Access: AccessUser,
		Usage: "today", Help: "today's date"},
	{Name: "ftoc", Kind: KindBuiltin, Access: AccessUser,
		Usage: "ftoc <fahrenheit>", Help: "convert Fahrenheit to Celsius"},
	{Name: "ctof", Kind: KindBuiltin, Access: AccessUser,
		Usage: "ctof <celsius>", Help: "convert Celsius to Fahrenheit"},

	{Name: "admin_help", Aliases: []string{"admin-help", "adminhelp", "ahelp"}, Kind: KindAdmin, Access: AccessAdmin,
		Usage: "admin_help", Help: "admin command overview"},
	{Name: "custom_commands", Aliases: []string{"custom_command"}, Kind: KindAdmin, Access: AccessAdmin,
		Usage: "custom_commands list [source|all] | add [source|all] <name> <content> | edit [source|all] <name> <content> | remove [source|all] <name>",
		Help:  "manage custom commands"},
	{Name: "stats", Kind: KindAdmin, Access: AccessAdmin,
		Usage: "stats [current|total|YYYY-MM]", Help: "command usage statistics"},

	{Name: "owner_help", Aliases: []string{"owner-help", "ownerhelp", "ohelp"}, Kind: KindOwner, Access: AccessOwner,
		Usage: "owner_help", Help: "owner command overview"},
	{Name: "admins", Aliases: []string{"admin"}, Kind: KindOwner, Access: AccessOwner,
		Usage: "admins list [source] | add [source] <user id|mention> | remove [source] <user id|mention>",
		Help:  "manage admins"},
}

var builtinIndex = func() map[string]*Builtin {
	idx := make(map[string]*Builtin, len(Builtins)*2)
	for i := range Builtins {
		b := &Builtins[i]
		idx[b.Name] = b
		for _, a := range b.Aliases {
			idx[a] = b
		}
	}
	return idx
}()

// LookupBuiltin finds a built-in by normalized name or alias.
func LookupBuiltin(name string) (*Builtin, bool) {
	b, ok := builtinIndex[name]
	return b, ok
}

// IsReserved reports whether name is taken by a built-in name or alias.
func IsReserved(name string) bool {
	_, ok := builtinIndex[name]
	return ok
}

// BuiltinsFor returns the built-ins requiring exactly the given access, in
// table order.
func BuiltinsFor(access Access) []Builtin {
	var out []Builtin
	for _, b := range Builtins {
		if b.Access == access {
			out = append(out, b)
		}
	}
	return out
}
