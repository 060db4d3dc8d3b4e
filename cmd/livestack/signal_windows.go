package main

import "os"

// toggleSignals are not supported on windows.
var toggleSignals []os.Signal
