// Package textutil provides the name handling shared by run lookup and
// reporting: file name sanitising that matches the run manager's export
// layout, part name normalisation and display casing.
package textutil
