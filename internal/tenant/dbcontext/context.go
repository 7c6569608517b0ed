// Package dbcontext modela el "connection context": qué base de datos
// física está activa para la unidad de trabajo en curso.
//
// El contexto NUNCA es estado global del proceso. Cada request (o cada
// operación de provisioning) recibe su propio *Context; en un servidor
// goroutine-per-request un default global haría sangrar el tenant de un
// request en otro. Un *Context individual no es seguro para uso
// concurrente: pertenece a una sola unidad de trabajo.
package dbcontext

import (
	"context"
	"database/sql"
)

// PoolProvider resuelve el pool físico para un nombre de base.
// Lo implementa *Manager; los tests usan fakes.
type PoolProvider interface {
	Get(ctx context.Context, database string) (*sql.DB, error)
}

// Context es el connection context de una unidad de trabajo.
type Context struct {
	pools   PoolProvider
	control string
	current string
}

// New crea un Context apuntando a la base del control plane.
func New(pools PoolProvider, controlDatabase string) *Context {
	return &Context{pools: pools, control: controlDatabase, current: controlDatabase}
}

// NewFor crea un Context ya apuntado a una base específica (p.ej. la del
// tenant resuelto por dominio). El control plane queda registrado para
// validaciones del guard.
func NewFor(pools PoolProvider, controlDatabase, database string) *Context {
	return &Context{pools: pools, control: controlDatabase, current: database}
}

// Current retorna el nombre de la base activa.
func (c *Context) Current() string { return c.current }

// ControlDatabase retorna el nombre de la base del control plane.
func (c *Context) ControlDatabase() string { return c.control }

// DB retorna el pool de la base activa.
func (c *Context) DB(ctx context.Context) (*sql.DB, error) {
	return c.pools.Get(ctx, c.current)
}

// WithDatabase cambia la base activa, ejecuta fn y restaura la base
// inmediatamente anterior en todo camino de salida (return, error o
// panic). Las llamadas anidadas componen: se restaura el target previo,
// no un default fijo, así provisioning dentro de un request ya
// switcheado no corrompe el contexto del caller.
func (c *Context) WithDatabase(ctx context.Context, database string, fn func(ctx context.Context, db *sql.DB) error) error {
	prev := c.current
	c.current = database
	defer func() { c.current = prev }()

	db, err := c.pools.Get(ctx, database)
	if err != nil {
		return err
	}
	return fn(ctx, db)
}

type ctxKey struct{}

// ToContext inyecta el connection context en un context.Context.
// Lo usa el middleware de resolución de tenant; el guard y los handlers
// lo recuperan con FromContext.
func ToContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext extrae el connection context del request. Retorna nil si
// ningún middleware lo inyectó.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey{}).(*Context); ok {
		return v
	}
	return nil
}
