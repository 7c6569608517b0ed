package dbcontext

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
)

var (
	ErrNoDatabase            = errors.New("no database name for connection")
	ErrResolverNotConfigured = errors.New("dsn resolver not configured")
)

// DSNResolver deriva el DSN para una base dada. Normalmente es
// (*mysql.Store).DSNForDatabase, así todos los pools comparten
// host, credenciales y flags del control plane.
type DSNResolver func(database string) string

// PoolConfig define parámetros del pool por base.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ManagerConfig permite personalizar la instancia del Manager.
type ManagerConfig struct {
	Resolve DSNResolver
	Pool    PoolConfig
}

// PoolStat es un snapshot del estado de un pool específico.
type PoolStat struct {
	Database string
	InUse    int
	Idle     int
	Open     int
}

// Manager administra pools de conexión por base de datos, evitando
// creaciones en paralelo mediante singleflight. Un pool queda ligado a
// un nombre de base; nunca se reapunta (Invalidate lo cierra y el
// próximo acceso crea uno nuevo).
type Manager struct {
	resolver DSNResolver
	poolCfg  PoolConfig

	mu    sync.RWMutex
	pools map[string]*sql.DB
	sf    singleflight.Group
}

// NewManager crea un nuevo Manager con la configuración indicada.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Resolve == nil {
		return nil, ErrResolverNotConfigured
	}

	poolCfg := cfg.Pool
	if poolCfg.MaxOpenConns <= 0 {
		poolCfg.MaxOpenConns = 10
	}
	if poolCfg.MaxIdleConns <= 0 {
		poolCfg.MaxIdleConns = 2
	}
	if poolCfg.ConnMaxLifetime <= 0 {
		poolCfg.ConnMaxLifetime = 30 * time.Minute
	}

	return &Manager{
		resolver: cfg.Resolve,
		poolCfg:  poolCfg,
		pools:    make(map[string]*sql.DB),
	}, nil
}

// Get devuelve (o crea) el pool asociado a la base solicitada.
func (m *Manager) Get(ctx context.Context, database string) (*sql.DB, error) {
	database = strings.TrimSpace(database)
	if database == "" {
		return nil, ErrNoDatabase
	}

	m.mu.RLock()
	if db, ok := m.pools[database]; ok {
		m.mu.RUnlock()
		return db, nil
	}
	m.mu.RUnlock()

	result, err, _ := m.sf.Do(database, func() (interface{}, error) {
		// Otro goroutine pudo haberlo creado mientras esperábamos el vuelo.
		m.mu.RLock()
		if db, ok := m.pools[database]; ok {
			m.mu.RUnlock()
			return db, nil
		}
		m.mu.RUnlock()

		db, err := m.openPool(ctx, database)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.pools[database] = db
		m.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*sql.DB), nil
}

func (m *Manager) openPool(ctx context.Context, database string) (*sql.DB, error) {
	db, err := sql.Open("mysql", m.resolver(database))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(m.poolCfg.MaxOpenConns)
	db.SetMaxIdleConns(m.poolCfg.MaxIdleConns)
	db.SetConnMaxLifetime(m.poolCfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.L().Info("tenant_pool_ready",
		logger.Database(database),
		logger.Int("max_open_conns", m.poolCfg.MaxOpenConns),
	)
	return db, nil
}

// Invalidate cierra y descarta el pool de una base. Obligatorio tras un
// DROP DATABASE: conexiones viejas no deben sobrevivir al nombre.
func (m *Manager) Invalidate(database string) {
	m.mu.Lock()
	db, ok := m.pools[database]
	if ok {
		delete(m.pools, database)
	}
	m.mu.Unlock()

	if ok && db != nil {
		_ = db.Close()
		logger.L().Info("tenant_pool_invalidated", logger.Database(database))
	}
}

// PoolCount retorna el número de pools activos.
func (m *Manager) PoolCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}

// Stats devuelve un snapshot con los stats actuales de cada pool.
func (m *Manager) Stats() map[string]PoolStat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]PoolStat, len(m.pools))
	for database, db := range m.pools {
		if db == nil {
			continue
		}
		st := db.Stats()
		out[database] = PoolStat{
			Database: database,
			InUse:    st.InUse,
			Idle:     st.Idle,
			Open:     st.OpenConnections,
		}
	}
	return out
}

// Close cierra todos los pools activos.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for database, db := range m.pools {
		if db != nil {
			_ = db.Close()
		}
		delete(m.pools, database)
	}
	return nil
}
