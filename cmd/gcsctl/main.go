// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// gcsctl is the ground-control-station operator tool: it runs link.GCS's
// tick loop against a transceiver and exposes every uplink command as a
// subcommand. Authenticated commands carry whatever MAC the operator
// supplies; computing a MAC from the FC's broadcast hash chain is ground
// tooling outside this module's scope.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
