package build

import (
	"github.com/outofforest/build"
	"github.com/outofforest/buildgo"
)

// Commands is a definition of commands available in build system
var Commands = map[string]build.Command{
	"test": {Fn: goTests, Description: "Runs unit tests with the hash table shrunk to force chain collisions"},
}

func init() {
	buildgo.AddCommands(Commands)
}
