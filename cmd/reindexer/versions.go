package main

import (
	"github.com/cosmos-archival/reindexer/appversion"
	"github.com/cosmos-archival/reindexer/appversion/vcurrent"
	"github.com/cosmos-archival/reindexer/appversion/vledger"
	"github.com/cosmos-archival/reindexer/appversion/vseed"
)

// defaultRegistry assembles the engine's closed, build-time-registered set
// of protocol versions and the migrations between adjacent pairs. A real
// deployment would register the chain's actual historical application
// binaries here instead of these three toy versions.
func defaultRegistry() *appversion.Registry {
	r := appversion.NewRegistry()
	r.Register(vseed.Version{})
	r.Register(vledger.Version{})
	r.Register(vcurrent.Version{})
	r.RegisterMigration(vseed.Name, vledger.Name, vledger.Migrate)
	r.RegisterMigration(vledger.Name, vcurrent.Name, vcurrent.Migrate)
	return r
}
