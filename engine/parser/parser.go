// Package parser turns a line of player input into an Intent. It does
// plain word matching: synonyms, phrasal verbs, articles and one
// preposition splitting object from target.
package parser

import (
	"strings"

	"github.com/nathoo/fablecore/types"
)

// ActionFor returns the action ID for a canonical verb.
func ActionFor(verb string) string {
	if verb == "" {
		return ""
	}
	if id, ok := actionIDs[verb]; ok {
		return id
	}
	return "if.action." + verb
}

// Canonical returns the canonical form of a verb or synonym.
func Canonical(word string) string {
	word = strings.ToLower(word)
	if v, ok := canonical[word]; ok {
		return v
	}
	return word
}

// Parse converts a raw command string into an Intent.
func Parse(input string) types.Intent {
	words := strings.Fields(strings.ToLower(input))
	if len(words) == 0 {
		return types.Intent{}
	}

	// A bare direction is shorthand for going that way.
	if len(words) == 1 {
		if dir, ok := directions[words[0]]; ok {
			return movement(dir)
		}
	}

	if len(words) >= 2 {
		if v, ok := phrasal[[2]string{words[0], words[1]}]; ok {
			words = append([]string{v}, words[2:]...)
		}
	}

	verb := Canonical(words[0])
	rest := withoutArticles(words[1:])

	if verb == "go" && len(rest) > 0 {
		if dir, ok := directions[strings.Join(rest, " ")]; ok {
			return movement(dir)
		}
	}

	object, target := split(rest)
	return types.Intent{
		Verb:   verb,
		Action: ActionFor(verb),
		Object: object,
		Target: target,
	}
}

func movement(dir string) types.Intent {
	return types.Intent{Verb: "go", Action: ActionFor("go"), Object: dir, Direction: dir}
}

func withoutArticles(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			out = append(out, w)
		}
	}
	return out
}

// split cuts words at the first preposition after the first word. Words
// before it name the object, words after it the target.
func split(words []string) (object, target string) {
	for i := 1; i < len(words); i++ {
		if prepositions[words[i]] {
			return strings.Join(words[:i], " "), strings.Join(words[i+1:], " ")
		}
	}
	return strings.Join(words, " "), ""
}
