package kv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/tools/clientcmd"
)

// KubeConfigMapStore maps each namespace to a ConfigMap of the same name.
// Reads are served from an informer-fed cache.
type KubeConfigMapStore struct {
	logger        *zap.Logger
	cli           kubernetes.Interface
	lock          *sync.RWMutex
	values        map[string]map[string]string
	versions      map[string]string
	kubeNamespace string
}

func NewKubeConfigMapStore(logger *zap.Logger, kubeNamespace string) (*KubeConfigMapStore, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, nil)
		config, err = kubeConfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("cannot load kube config: %w", err)
		}
	}

	cli, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}

	return newKubeConfigMapStore(logger, cli, kubeNamespace), nil
}

func newKubeConfigMapStore(logger *zap.Logger, cli kubernetes.Interface, kubeNamespace string) *KubeConfigMapStore {
	return &KubeConfigMapStore{
		logger:        logger.Named("kube-configmap"),
		cli:           cli,
		lock:          new(sync.RWMutex),
		values:        make(map[string]map[string]string),
		versions:      make(map[string]string),
		kubeNamespace: kubeNamespace,
	}
}

// loadConfig replaces the cached data of cm, unless the cache already holds
// a newer version. Informer events can arrive after Set applied its own
// patch result.
func (s *KubeConfigMapStore) loadConfig(cm *v1.ConfigMap) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if isStaleVersion(s.versions[cm.Name], cm.ResourceVersion) {
		s.logger.Debug("ignoring stale configmap",
			zap.String("namespace", cm.Name),
			zap.String("resourceVersion", cm.ResourceVersion),
			zap.String("applied", s.versions[cm.Name]),
		)
		return
	}

	values := make(map[string]string, len(cm.Data))
	for k, v := range cm.Data {
		values[k] = v
	}
	s.values[cm.Name] = values
	s.versions[cm.Name] = cm.ResourceVersion

	s.logger.Debug("configmap loaded", zap.String("namespace", cm.Name), zap.Int("len", len(values)))
}

func (s *KubeConfigMapStore) Start(ctx context.Context, g *errgroup.Group) error {
	cms := s.cli.CoreV1().ConfigMaps(s.kubeNamespace)
	for _, ns := range registeredNamespaces() {
		cm, err := cms.Create(ctx, &v1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: ns},
			Data:       map[string]string{},
		}, metav1.CreateOptions{})
		if errors.IsAlreadyExists(err) {
			cm, err = cms.Get(ctx, ns, metav1.GetOptions{})
		}
		if err != nil {
			return fmt.Errorf("cannot setup configmap %s: %w", ns, err)
		}

		s.loadConfig(cm)
	}

	watchlist := cache.NewListWatchFromClient(
		s.cli.CoreV1().RESTClient(),
		string(v1.ResourceConfigMaps),
		s.kubeNamespace,
		fields.Everything(),
	)
	onChange := func(obj interface{}) {
		cm, ok := obj.(*v1.ConfigMap)
		if ok && isRegistered(cm.Name) {
			s.loadConfig(cm)
		}
	}
	_, controller := cache.NewInformer(
		watchlist,
		&v1.ConfigMap{},
		0,
		cache.ResourceEventHandlerFuncs{
			AddFunc:    onChange,
			UpdateFunc: func(_, newObj interface{}) { onChange(newObj) },
		},
	)

	g.Go(func() error {
		controller.Run(ctx.Done())
		return nil
	})

	s.logger.Info("using configmap store", zap.String("kubeNamespace", s.kubeNamespace))
	return nil
}

func (s *KubeConfigMapStore) Get(ctx context.Context, ns Namespace, key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.values[string(ns)][escapeKey(key)], nil
}

func (s *KubeConfigMapStore) Set(ctx context.Context, ns Namespace, key string, value string) error {
	patch, err := makePatch(key, value)
	if err != nil {
		return err
	}

	cm, err := s.cli.CoreV1().ConfigMaps(s.kubeNamespace).Patch(
		ctx,
		string(ns),
		types.StrategicMergePatchType,
		patch,
		metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("cannot patch configmap %s: %w", ns, err)
	}

	// apply immediately so the write is visible to the next Get without
	// waiting for the informer
	s.loadConfig(cm)
	return nil
}

// isStaleVersion reports whether incoming is older than applied. Resource
// versions are opaque to clients, but the API server backs them with etcd
// revisions; anything that is not numeric is accepted.
func isStaleVersion(applied string, incoming string) bool {
	a, err := strconv.ParseUint(applied, 10, 64)
	if err != nil {
		return false
	}
	b, err := strconv.ParseUint(incoming, 10, 64)
	if err != nil {
		return false
	}
	return b < a
}

var escaper = regexp.MustCompile(`[^a-zA-Z0-9-_]+`)

// escapeKey maps arbitrary keys onto the ConfigMap key charset.
func escapeKey(key string) string {
	return escaper.ReplaceAllStringFunc(key, func(c string) string {
		return "." + base64.RawURLEncoding.EncodeToString([]byte(c)) + "."
	})
}

func makePatch(key string, value string) ([]byte, error) {
	type patch struct {
		Data map[string]string `json:"data"`
	}
	return json.Marshal(patch{Data: map[string]string{
		escapeKey(key): value,
	}})
}
