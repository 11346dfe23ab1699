// Command gendts writes the Editor API's `.d.ts` declaration file (spec §9:
// "a build-time binding generator"), read by plugin authors' editors and
// type checkers. Run as part of the build, not the editor itself.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/realagiorganization/fresh/internal/plugin"
)

func main() {
	out := flag.String("out", "editor.d.ts", "path to write the generated declaration file")
	flag.Parse()

	if err := os.WriteFile(*out, []byte(plugin.GenerateDTS()), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "gendts:", err)
		os.Exit(1)
	}
}
