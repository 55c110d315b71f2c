package kv

import (
	"context"
	"sync"
)

type Store interface {
	Get(ctx context.Context, ns Namespace, key string) (string, error)
	Set(ctx context.Context, ns Namespace, key string, value string) error
}

var (
	namespacesLock sync.Mutex
	namespaces     = make(map[string]struct{})
)

type Namespace string

// RegisterNamespace declares a namespace at init time. Backends that need
// to provision storage up front (e.g. one ConfigMap per namespace) do so for
// every registered namespace on Start.
func RegisterNamespace(ns string) Namespace {
	namespacesLock.Lock()
	defer namespacesLock.Unlock()

	namespaces[ns] = struct{}{}
	return Namespace(ns)
}

func registeredNamespaces() []string {
	namespacesLock.Lock()
	defer namespacesLock.Unlock()

	list := make([]string, 0, len(namespaces))
	for ns := range namespaces {
		list = append(list, ns)
	}
	return list
}

func isRegistered(ns string) bool {
	namespacesLock.Lock()
	defer namespacesLock.Unlock()

	_, ok := namespaces[ns]
	return ok
}
