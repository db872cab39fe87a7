// Package vseed is the first of three registered, mutually-incompatible
// protocol versions the app-version registry drives. It implements a toy
// account-balance ledger: genesis seeds balances from the genesis
// app_state subtree, deliver_tx applies "from:to:amount" transfers, and
// begin_block mints a fixed per-block issuance into a community pool, the
// way a per-block inflation BeginBlocker emits a "mint" event, generalized
// away from bonded-ratio decimal math, which has no analogue in a
// replay-only toy ledger.
package vseed

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cosmos-archival/reindexer/appversion"
	"github.com/cosmos-archival/reindexer/appversion/kvstore"
	"github.com/cosmos-archival/reindexer/block"
	"github.com/cosmos-archival/reindexer/compat"
	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// Name is this version's registry key.
const Name = "vseed"

const stateBackend = "goleveldb"

// PerBlockIssuance is the fixed amount minted into the community pool each
// begin_block, standing in for a bonded-ratio inflation curve.
const PerBlockIssuance = 10

// State is vseed's on-disk data shape: a flat balance ledger plus a
// community pool. Later versions reshape this (see vledger, vcurrent).
type State struct {
	Balances  map[string]int64 `json:"balances"`
	Community int64            `json:"community"`
}

const stateKey = "vseed.state"

// Version registers vseed with an appversion.Registry.
type Version struct{}

func (Version) Name() string { return Name }

func (Version) Load(ctx context.Context, workingDir string) (appversion.Instance, error) {
	store, err := kvstore.Open(workingDir, "vseed-state", stateBackend)
	if err != nil {
		return nil, err
	}
	return &instance{store: store}, nil
}

type instance struct {
	store *kvstore.Store
	state State
}

func (i *instance) Genesis(ctx context.Context, g block.Genesis) error {
	if _, ok, _ := i.store.GetMeta(); ok {
		return xerrors.VersionRuntime.New("vseed instance is already initialized")
	}

	var appState struct {
		Balances map[string]int64 `json:"balances"`
	}
	if len(g.Raw) > 0 {
		var doc struct {
			AppState json.RawMessage `json:"app_state"`
		}
		if err := json.Unmarshal(g.Raw, &doc); err != nil {
			return xerrors.VersionRuntime.Wrap(err, "decoding genesis document")
		}
		if len(doc.AppState) > 0 {
			if err := json.Unmarshal(doc.AppState, &appState); err != nil {
				return xerrors.VersionRuntime.Wrap(err, "decoding vseed app_state")
			}
		}
	}
	if appState.Balances == nil {
		appState.Balances = map[string]int64{}
	}

	i.state = State{Balances: appState.Balances, Community: 0}
	if err := i.store.PutJSON(stateKey, i.state); err != nil {
		return err
	}
	return i.store.PutMeta(kvstore.Meta{Height: g.InitialHeight - 1, ChainID: g.ChainID, Ready: true})
}

func (i *instance) Metadata(ctx context.Context) (int64, string, error) {
	meta, ok, err := i.store.GetMeta()
	if err != nil {
		return 0, "", err
	}
	if !ok || !meta.Ready {
		return 0, "", xerrors.VersionRuntime.New("vseed instance is not initialized")
	}
	return meta.Height, meta.ChainID, nil
}

func (i *instance) loadState() error {
	if i.state.Balances != nil {
		return nil
	}
	var s State
	ok, err := i.store.GetJSON(stateKey, &s)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.VersionRuntime.New("vseed state missing for an initialized instance")
	}
	i.state = s
	return nil
}

func (i *instance) BeginBlock(ctx context.Context, req compat.BeginBlock) ([]compat.Event, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}
	i.state.Community += PerBlockIssuance
	return []compat.Event{{
		Kind: "mint",
		Attributes: []compat.Attribute{
			compat.NewAttribute("amount", strconv.FormatInt(PerBlockIssuance, 10)),
			compat.NewAttribute("height", strconv.FormatInt(req.Height, 10)),
		},
	}}, nil
}

func (i *instance) DeliverTx(ctx context.Context, req compat.DeliverTx) ([]compat.Event, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}
	from, to, amount, err := parseTransfer(req.Tx)
	if err != nil {
		return nil, err
	}
	if i.state.Balances[from] < amount {
		return nil, xerrors.VersionRuntime.Newf("insufficient balance: %s has %d, needs %d", from, i.state.Balances[from], amount)
	}
	i.state.Balances[from] -= amount
	i.state.Balances[to] += amount
	return []compat.Event{{
		Kind: "transfer",
		Attributes: []compat.Attribute{
			compat.NewAttribute("from", from),
			compat.NewAttribute("to", to),
			compat.NewAttribute("amount", strconv.FormatInt(amount, 10)),
		},
	}}, nil
}

// parseTransfer decodes the toy "from:to:amount" transaction wire format.
func parseTransfer(tx []byte) (from, to string, amount int64, err error) {
	parts := strings.SplitN(string(tx), ":", 3)
	if len(parts) != 3 {
		return "", "", 0, xerrors.VersionRuntime.Newf("malformed transfer tx %q", string(tx))
	}
	amount, convErr := strconv.ParseInt(parts[2], 10, 64)
	if convErr != nil {
		return "", "", 0, xerrors.VersionRuntime.Wrapf(convErr, "malformed transfer amount in tx %q", string(tx))
	}
	return parts[0], parts[1], amount, nil
}

func (i *instance) EndBlock(ctx context.Context, req compat.EndBlock) ([]compat.Event, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}
	return []compat.Event{{
		Kind: "block",
		Attributes: []compat.Attribute{
			compat.NewAttribute("height", strconv.FormatInt(req.Height, 10)),
		},
	}}, nil
}

func (i *instance) Commit(ctx context.Context) ([]byte, error) {
	if err := i.loadState(); err != nil {
		return nil, err
	}
	if err := i.store.PutJSON(stateKey, i.state); err != nil {
		return nil, err
	}
	meta, _, err := i.store.GetMeta()
	if err != nil {
		return nil, err
	}
	meta.Height++
	if err := i.store.PutMeta(meta); err != nil {
		return nil, err
	}
	return appHash(i.state, meta.Height)
}

// appHash is a deterministic, canonical digest over the version's state and
// height: same plan + same archive => same bytes at every height.
func appHash(s State, height int64) ([]byte, error) {
	keys := make([]string, 0, len(s.Balances))
	for k := range s.Balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "vseed|height=%d|community=%d", height, s.Community)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%d", k, s.Balances[k])
	}
	sum := h.Sum(nil)
	return sum, nil
}

func (i *instance) Release(ctx context.Context) error {
	return i.store.Close()
}
