package node

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/lunfardo314/unitrie/adaptors/badger_adaptor"
	"github.com/spf13/viper"
	"github.com/tradelayer/tradelayerd/engine"
	"github.com/tradelayer/tradelayerd/global"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/util"
	"go.uber.org/zap/zapcore"
)

// Node wires the state database, the engine and the API server together.
// It embeds both the process environment and the engine, so it satisfies
// the API server's environment interface directly.

type Node struct {
	*global.Global
	*engine.Engine
	stateDB    *badger_adaptor.DB
	dbClosedWG sync.WaitGroup
	started    time.Time
}

func New() *Node {
	viper.SetConfigName("tradelayerd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()
	util.AssertNoError(err)

	logLevel := zapcore.InfoLevel
	if viper.GetString(global.ConfigKeyLogLevel) == "debug" {
		logLevel = zapcore.DebugLevel
	}
	return &Node{
		Global:  global.New(logLevel),
		started: time.Now(),
	}
}

func (n *Node) Start() {
	n.Log().Info(global.BannerString())

	err := util.CatchPanicOrError(func() error {
		n.initStateDB()
		n.initEngine()
		n.startBlockTicker()
		n.startAPIServer()
		return nil
	})
	if err != nil {
		n.Log().Errorf("error on startup: %v", err)
		os.Exit(1)
	}
	n.Log().Infof("tradelayerd node has been started successfully")
}

func (n *Node) initStateDB() {
	dbname := viper.GetString(global.ConfigKeyDBName)
	if dbname == "" {
		dbname = global.StateDBName
	}
	n.stateDB = badger_adaptor.New(badger_adaptor.MustCreateOrOpenBadgerDB(dbname))
	n.Log().Infof("opened state DB '%s'", dbname)

	n.dbClosedWG.Add(1)
	go func() {
		<-n.Ctx().Done()
		n.Wait() // all components must stop before the DB closes
		_ = n.stateDB.Close()
		n.Log().Infof("state database has been closed")
		n.dbClosedWG.Done()
	}()

	go n.databaseGCLoop()
}

func (n *Node) databaseGCLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-n.Ctx().Done():
			return
		case <-ticker.C:
			start := time.Now()
			err := n.stateDB.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				n.Log().Warnf("badger DB GC: %v", err)
				continue
			}
			n.Log().Debugf("badger DB GC (%v): %v", time.Since(start), err)
		}
	}
}

func (n *Node) initEngine() {
	network := viper.GetString(global.ConfigKeyNetwork)
	params, ok := ledger.ParamsByName(network)
	if !ok {
		n.Log().Fatalf("unknown network '%s'", network)
	}
	admin := ledger.Address(viper.GetString(global.ConfigKeyAdminAddr))
	if admin.IsNil() {
		n.Log().Fatalf("'%s' must be set in the config", global.ConfigKeyAdminAddr)
	}
	retain := viper.GetInt(global.ConfigKeySnapshots)
	if retain <= 0 {
		retain = global.DefaultSnapshotsNum
	}
	eng, err := engine.New(n.Global, n.stateDB, params, admin, engine.WithSnapshotsRetained(retain))
	util.AssertNoError(err)
	n.Engine = eng
	n.Log().Infof("committed state:\n%s", eng.StateLines("     ").String())
}

// startBlockTicker connects a block from the pending queue on the carrier
// chain's target interval. A real deployment drives ConnectBlock from the
// carrier-ledger notifications instead
func (n *Node) startBlockTicker() {
	sec := viper.GetInt(global.ConfigKeyBlockSec)
	if sec <= 0 {
		sec = global.DefaultBlockSec
	}
	interval := time.Duration(sec) * time.Second

	n.MarkStartedComponent()
	go func() {
		defer n.MarkStoppedComponent()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-n.Ctx().Done():
				n.Log().Infof("block ticker stopped")
				return
			case <-ticker.C:
				h, err := n.ConnectNext()
				if err != nil {
					n.Log().Fatalf("block connect failed: %v", err)
				}
				n.Log().Debugf("connected block %d, consensus hash %s", h, n.ConsensusHash())
			}
		}
	}()
	n.Log().Infof("block ticker started, interval %v", interval)
}

func (n *Node) WaitAllDBClosed() {
	n.dbClosedWG.Wait()
}
