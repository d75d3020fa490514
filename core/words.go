package core

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// adjectives and nouns back the two-word handle generator in id.go. Kept
// short and pronounceable, the way generated container/session names
// usually are; botty has no need for the full breadth a name generator
// aimed at avoiding collisions across millions of entries would want.
var adjectives = []string{
	"amber", "brisk", "calm", "coral", "dusty", "eager", "faded", "gentle",
	"hollow", "indigo", "jolly", "keen", "lively", "misty", "nimble", "ochre",
	"patient", "quiet", "restless", "sandy", "tidy", "umber", "vivid", "warm",
	"young", "zesty", "bold", "crisp", "dapper", "elder",
}

var nouns = []string{
	"badger", "condor", "dune", "egret", "falcon", "grove", "heron", "ibis",
	"jackal", "kestrel", "lichen", "marten", "newt", "otter", "pelican",
	"quokka", "raven", "swallow", "tapir", "urchin", "vole", "walrus",
	"yak", "zebra", "canyon", "delta", "fjord", "glacier", "harbor", "islet",
}

// LoadWordList replaces the built-in adjective/noun vocabulary with one
// read from path: two sections headed by bare lines "adjectives" and
// "nouns", one word per line thereafter. Operators who want handles drawn
// from a house style (project codenames, a longer dictionary) point
// word_list.path at such a file instead of patching the binary.
func LoadWordList(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load word list: %w", err)
	}
	defer f.Close()

	var section string
	var newAdjectives, newNouns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch line {
		case "adjectives", "nouns":
			section = line
			continue
		}
		switch section {
		case "adjectives":
			newAdjectives = append(newAdjectives, line)
		case "nouns":
			newNouns = append(newNouns, line)
		default:
			return fmt.Errorf("load word list: word %q outside adjectives/nouns section", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("load word list: %w", err)
	}
	if len(newAdjectives) == 0 || len(newNouns) == 0 {
		return fmt.Errorf("load word list: need at least one adjective and one noun")
	}
	adjectives = newAdjectives
	nouns = newNouns
	return nil
}
