package yactfr

import "github.com/kienanstewart/yactfr/datasource"

// DataSourceFactory creates independent DataSource handles over the
// same underlying bytes, one per iterator (§5). It is an alias for the
// datasource package's own Factory interface so that callers can pass
// a *datasource.FileFactory or *datasource.MemFactory directly without
// this package redeclaring an identical interface.
type DataSourceFactory = datasource.Factory

// DataSource is the byte-addressable backing store an iterator's VM
// decodes against.
type DataSource = datasource.DataSource
