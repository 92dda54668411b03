//go:build audiodebug

// Building with the 'audiodebug' tag enables trace logging of session state
// changes and slot underruns. These calls run in the output callback, so they
// are compiled out of regular builds.

package audio

const addDebugTrace = true
