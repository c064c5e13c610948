package util

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

/*
The execution context accumulates per-request statistics: counters such as
bytes written and variables encoded, string data such as the dataset version
served, and child contexts for nested stages like dataset loads. Request
handlers attach one with WithContext and log or report it on completion.
Functions called with a context lacking one are no-ops.
*/

////////////////////////////////////////////////////////////////////////////////

type contextKey int

const (
	ContextKey contextKey = iota
)

// Context is a named set of request statistics.
type Context struct {
	Name     string             `json:"name"`
	Values   map[string]float64 `json:"values"`
	Data     map[string]string  `json:"data"`
	Children []*Context         `json:"children,omitempty"`

	mtx *sync.Mutex
}

func newContext(name string) *Context {
	return &Context{
		Name:   name,
		Values: make(map[string]float64),
		Data:   make(map[string]string),
		mtx:    &sync.Mutex{},
	}
}

// WithContext attaches a new execution context to ctx.
func WithContext(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKey, newContext(name))
}

// IncContextValue adds inc to the named counter.
func IncContextValue(ctx context.Context, name string, inc float64) {
	c := fromContext(ctx)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.Values[name] += inc
}

// SetContextValue sets the named counter.
func SetContextValue(ctx context.Context, name string, value float64) {
	c := fromContext(ctx)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.Values[name] = value
}

// SetContextData records a string value.
func SetContextData(ctx context.Context, key string, data string) {
	c := fromContext(ctx)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.Data[key] = data
}

func fromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(ContextKey).(*Context); ok {
		return c
	}
	return newContext("")
}

// WithChildContext attaches a child of the current execution context.
func WithChildContext(ctx context.Context, name string) (context.Context, *Context) {
	c := fromContext(ctx)
	child := newContext(name)
	c.mtx.Lock()
	c.Children = append(c.Children, child)
	c.mtx.Unlock()
	return context.WithValue(ctx, ContextKey, child), child
}

// ContextValue returns the named counter from the current execution context.
func ContextValue(ctx context.Context, name string) float64 {
	c := fromContext(ctx)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.Values[name]
}

// ContextJSON serializes the current execution context.
func ContextJSON(ctx context.Context) (string, error) {
	c := fromContext(ctx)
	return c.JSON()
}

// JSON serializes the context and its children.
func (c *Context) JSON() (string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to serialize execution context: %w", err)
	}
	return string(data), nil
}
