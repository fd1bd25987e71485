// Package watch re-triggers a lip-sync run when its inputs change on disk.
//
// Parent directories are watched rather than the files themselves so editors
// that save by rename are still seen. Bursts of events are debounced and a
// content digest filters out saves that did not change the file.
package watch
