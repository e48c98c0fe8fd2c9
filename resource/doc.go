// Package resource provides the descriptor table behind the capability
// library.
//
// A Table maps descriptor numbers to host values tagged with a Kind:
//
//	table := resource.NewTable()
//	table.InsertAt(0, resource.KindStdio, os.Stdin)
//	fd := table.Insert(resource.KindFile, f) // lowest free number
//	v, kind, ok := table.Get(fd)
//	table.Remove(fd) // calls Drop if the value implements Dropper
//
// Observers receive an Event for every handle created or dropped.
package resource
