// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// fcsim runs a simulated Flight Computer main loop: it drives link.FC's
// tick scheduler against an in-memory transceiver so the link core can be
// exercised end-to-end without real LLCC68 hardware.
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
