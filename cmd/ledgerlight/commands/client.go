package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ledgerlight/ledgerlight/config"
	"github.com/ledgerlight/ledgerlight/libs/log"
	"github.com/ledgerlight/ledgerlight/light"
	"github.com/ledgerlight/ledgerlight/light/store"
	dbs "github.com/ledgerlight/ledgerlight/light/store/db"
	"github.com/ledgerlight/ledgerlight/light/store/file"
	"github.com/ledgerlight/ledgerlight/rpc/client/http"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

const storePrefix = "light"

// openStorage opens the storage the trusted state is kept in. The returned
// func releases it.
func openStorage(conf *config.Config) (store.Storage, func() error, error) {
	if conf.DBBackend == config.DBBackendFile {
		s, err := file.New(conf.DBDir())
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	}

	db, err := config.DefaultDBProvider(&config.DBContext{ID: storePrefix, Config: conf})
	if err != nil {
		return nil, nil, fmt.Errorf("can't open %s database: %w", conf.DBBackend, err)
	}
	return dbs.New(db, storePrefix), db.Close, nil
}

// newLightClient builds a client from conf. A configured waypoint is used
// as the bootstrap state; a newer stored state still takes precedence.
func newLightClient(conf *config.Config, logger log.Logger, options ...light.Option) (*light.Client, func() error, error) {
	storage, closer, err := openStorage(conf)
	if err != nil {
		return nil, nil, err
	}

	transport, err := http.NewWithTimeout(conf.RPC.Remote, conf.RPC.Timeout)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}

	options = append([]light.Option{
		light.Logger(logger),
		light.ChainID(conf.Light.ChainID),
		light.AutoSyncWhenBehind(conf.Light.AutoSyncWhenBehind),
		light.ParallelVerification(conf.Light.ParallelVerification),
	}, options...)

	var c *light.Client
	if conf.Light.Waypoint != "" {
		var w types.Waypoint
		w, err = conf.Light.ParseWaypoint()
		if err == nil {
			c, err = light.NewClient(transport, types.NewWaypointOnlyState(w), storage, options...)
		}
	} else {
		c, err = light.NewClientFromTrustedStore(transport, storage, options...)
		if errors.Is(err, store.ErrKeyNotFound) {
			err = errors.New("no trusted state stored yet: set light.waypoint in config.toml or run `init --light.waypoint`")
		}
	}
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return c, closer, nil
}

type result struct {
	Result interface{}     `json:"result"`
	State  coretypes.State `json:"state"`
}

func printJSON(w io.Writer, v interface{}) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(bz))
	return err
}
