package narrate

// defaults are the built-in texts for the standard actions. Game content
// overrides any of them through its message table.
var defaults = map[string]string{
	"action_blocked":            "You can't do that.",
	"unknown_action":            "I don't know how to do that.",
	"capability_dispatch_error": "Something prevents that.",
	"effects_rejected":          "Nothing happens.",
	"no_target":                 "What do you want to do that to?",
	"not_visible":               "You can't see that here.",
	"game_over":                 "Game over. Use /load to restore a save or /quit to exit.",
	"empty_input":               "What do you want to do?",
	"scenery":                   "You can't do anything useful with the {object}.",
	"scenery_examine":           "You see nothing special about the {object}.",
	"scenery_take":              "You can't take the {object}.",

	"if.action.taking.taken":          "Taken.",
	"if.action.taking.taken_from":     "You take the {item} from the {container}.",
	"if.action.taking.cant_take_self": "You are always self-possessed.",
	"if.action.taking.already_have":   "You already have the {item}.",
	"if.action.taking.cant_take_room": "That's hardly portable.",
	"if.action.taking.fixed_in_place": "The {item} is fixed in place.",

	"if.action.dropping.dropped":        "Dropped.",
	"if.action.dropping.not_held":       "You aren't carrying the {item}.",
	"if.action.dropping.cant_drop_here": "You can't drop anything here.",

	"if.action.going.no_direction":          "Go where?",
	"if.action.going.not_in_room":           "You can't go anywhere from here.",
	"if.action.going.no_exits":              "There is no way out.",
	"if.action.going.no_exit_that_way":      "You can't go that way.",
	"if.action.going.destination_not_found": "That way leads nowhere.",

	"if.action.examining.examined":        "{description}",
	"if.action.examining.nothing_special": "You see nothing special about the {item}.",

	"if.action.inventory.carrying": "You are carrying: {items}.",
	"if.action.inventory.empty":    "You are carrying nothing.",

	"if.action.waiting.time_passes": "Time passes.",

	"if.action.opening.opened":       "You open the {item}.",
	"if.action.opening.not_openable": "The {item} can't be opened.",
	"if.action.opening.already_open": "The {item} is already open.",
	"if.action.opening.locked":       "The {item} is locked.",

	"if.action.closing.closed":         "You close the {item}.",
	"if.action.closing.not_closable":   "The {item} can't be closed.",
	"if.action.closing.already_closed": "The {item} is already closed.",

	"if.action.unlocking.unlocked":         "You unlock the {item}.",
	"if.action.unlocking.unlocked_with":    "You unlock the {item} with the {key}.",
	"if.action.unlocking.not_lockable":     "The {item} has no lock.",
	"if.action.unlocking.already_unlocked": "The {item} is already unlocked.",
	"if.action.unlocking.no_key":           "Unlock it with what?",
	"if.action.unlocking.key_not_held":     "You aren't holding the {key}.",
	"if.action.unlocking.wrong_key":        "The {key} doesn't fit the {item}.",
}
