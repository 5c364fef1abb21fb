// Package fileutil holds small file helpers shared by the round writer and
// reader.
package fileutil
