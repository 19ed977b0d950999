//go:build !gui

package main

func initGUI() {
	panic("duosub: built without GUI support (rebuild with -tags gui)")
}
