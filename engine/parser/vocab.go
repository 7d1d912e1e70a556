package parser

// synonyms lists, for each canonical verb, the words that stand for it.
var synonyms = map[string][]string{
	"look":      {"l"},
	"examine":   {"x", "inspect", "check", "study", "observe", "describe", "search", "read"},
	"go":        {"walk", "run", "move", "head", "proceed", "enter", "travel"},
	"take":      {"get", "grab", "hold", "carry", "catch"},
	"drop":      {"discard"},
	"open":      {},
	"close":     {"shut"},
	"unlock":    {},
	"lock":      {},
	"inventory": {"inv", "i"},
	"wait":      {"z"},
	"attack":    {"hit", "fight", "strike", "kill", "punch", "kick", "smash", "destroy", "break"},
	"talk":      {"ask", "speak", "chat", "converse", "say", "tell"},
	"push":      {"press", "shove", "shift"},
	"pull":      {"drag", "tug", "yank"},
	"give":      {"offer", "hand", "feed"},
	"throw":     {"toss", "hurl", "lob"},
	"eat":       {"consume", "taste", "bite", "devour"},
	"drink":     {"sip", "swallow", "quaff"},
	"smell":     {"sniff"},
	"listen":    {"hear"},
	"touch":     {"feel", "rub"},
	"climb":     {"scale"},
	"jump":      {"leap", "hop"},
	"tie":       {"fasten", "attach"},
	"untie":     {"detach", "release"},
	"wear":      {"don"},
	"sleep":     {"nap", "rest"},
	"knock":     {"rap"},
	"yell":      {"scream", "shout"},
	"swim":      {"dive"},
	"buy":       {"purchase"},
}

// actionIDs maps canonical verbs to the IDs of the standard actions.
// Verbs not listed here map to "if.action.<verb>".
var actionIDs = map[string]string{
	"take":      "if.action.taking",
	"drop":      "if.action.dropping",
	"go":        "if.action.going",
	"look":      "if.action.looking",
	"examine":   "if.action.examining",
	"inventory": "if.action.inventory",
	"wait":      "if.action.waiting",
	"open":      "if.action.opening",
	"close":     "if.action.closing",
	"unlock":    "if.action.unlocking",
	"lock":      "if.action.locking",
}

// phrasal verbs keyed by their first two words.
var phrasal = map[[2]string]string{
	{"look", "at"}:    "examine",
	{"look", "in"}:    "examine",
	{"look", "under"}: "examine",
	{"pick", "up"}:    "take",
	{"talk", "to"}:    "talk",
	{"talk", "with"}:  "talk",
	{"speak", "to"}:   "talk",
	{"speak", "with"}: "talk",
	{"put", "on"}:     "wear",
	{"put", "down"}:   "drop",
	{"take", "off"}:   "remove",
	{"turn", "on"}:    "activate",
	{"turn", "off"}:   "deactivate",
	{"switch", "on"}:  "activate",
	{"switch", "off"}: "deactivate",
}

var directions = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west",
	"ne": "northeast", "nw": "northwest", "se": "southeast", "sw": "southwest",
	"u": "up", "d": "down",
	"north": "north", "south": "south", "east": "east", "west": "west",
	"northeast": "northeast", "northwest": "northwest",
	"southeast": "southeast", "southwest": "southwest",
	"up": "up", "down": "down", "in": "in", "out": "out",
}

var prepositions = map[string]bool{
	"on": true, "at": true, "to": true, "with": true,
	"in": true, "into": true, "from": true, "about": true, "under": true,
}

var articles = map[string]bool{"the": true, "a": true, "an": true, "some": true}

// canonical is the reverse index of synonyms.
var canonical = func() map[string]string {
	m := make(map[string]string)
	for verb, words := range synonyms {
		m[verb] = verb
		for _, w := range words {
			m[w] = verb
		}
	}
	return m
}()
