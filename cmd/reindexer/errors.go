package main

import "github.com/cosmos-archival/reindexer/internal/xerrors"

var errMissingSource = xerrors.SourceAvailability.New("one of --local-dir or --remote-url is required")
