package fabrik

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Domain identifies which builder registry a function name is resolved
// against.
type Domain string

// The three builder domains.
const (
	ModelDomain   Domain = "model"
	DatasetDomain Domain = "dataset"
	TrainerDomain Domain = "trainer"
)

// ResolutionError reports that a function name could not be resolved to a
// callable of the expected kind.
type ResolutionError struct {
	Domain Domain
	Name   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s function %q: %s", e.Domain, e.Name, e.Reason)
}

var (
	registryMu sync.RWMutex
	modelFns   = map[string]ModelFn{}
	datasetFns = map[string]DatasetFn{}
	trainerFns = map[string]TrainerFn{}
	namespaces = map[string]map[string]interface{}{}
)

// RegisterModel adds a model builder under a bare name. It panics if the name
// is already taken; registration happens at init time and a duplicate is a
// programming error.
func RegisterModel(name string, fn ModelFn) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := modelFns[name]; ok {
		panic(fmt.Sprintf("model function %q registered twice", name))
	}
	modelFns[name] = fn
}

// RegisterDataset adds a dataset builder under a bare name.
func RegisterDataset(name string, fn DatasetFn) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := datasetFns[name]; ok {
		panic(fmt.Sprintf("dataset function %q registered twice", name))
	}
	datasetFns[name] = fn
}

// RegisterTrainer adds a trainer builder under a bare name.
func RegisterTrainer(name string, fn TrainerFn) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := trainerFns[name]; ok {
		panic(fmt.Sprintf("trainer function %q registered twice", name))
	}
	trainerFns[name] = fn
}

// RegisterNamespace adds a plugin namespace: a set of named symbols reachable
// through qualified function names of the form "namespace.Symbol". This is the
// only mechanism for resolving names outside the built-in registries; symbols
// are enumerated explicitly, nothing is ever evaluated or loaded dynamically.
func RegisterNamespace(path string, symbols map[string]interface{}) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := namespaces[path]; ok {
		panic(fmt.Sprintf("namespace %q registered twice", path))
	}
	ns := make(map[string]interface{}, len(symbols))
	for k, v := range symbols {
		ns[k] = v
	}
	namespaces[path] = ns
}

// SplitQualifiedName splits "path.to.namespace.Symbol" at the last separator
// into the namespace path and the symbol name. A bare name returns an empty
// namespace.
func SplitQualifiedName(name string) (namespace, symbol string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

// Names lists the bare names registered in the given domain, sorted.
func Names(domain Domain) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var names []string
	switch domain {
	case ModelDomain:
		names = maps.Keys(modelFns)
	case DatasetDomain:
		names = maps.Keys(datasetFns)
	case TrainerDomain:
		names = maps.Keys(trainerFns)
	}
	slices.Sort(names)
	return names
}

// Resolve maps a function name to the registered builder for the given
// domain. Bare names are looked up in the fixed built-in registry of the
// domain; qualified names go through a registered namespace. The returned
// value is a ModelFn, DatasetFn or TrainerFn according to the domain.
func Resolve(domain Domain, name string) (interface{}, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ns, sym := SplitQualifiedName(name)
	if ns != "" {
		symbols, ok := namespaces[ns]
		if !ok {
			return nil, &ResolutionError{Domain: domain, Name: name,
				Reason: fmt.Sprintf("namespace %q is not registered", ns)}
		}
		v, ok := symbols[sym]
		if !ok {
			return nil, &ResolutionError{Domain: domain, Name: name,
				Reason: fmt.Sprintf("namespace %q has no symbol %q", ns, sym)}
		}
		return checkDomainType(domain, name, v)
	}

	var v interface{}
	var ok bool
	switch domain {
	case ModelDomain:
		v, ok = modelFns[sym]
	case DatasetDomain:
		v, ok = datasetFns[sym]
	case TrainerDomain:
		v, ok = trainerFns[sym]
	default:
		return nil, &ResolutionError{Domain: domain, Name: name, Reason: "unknown domain"}
	}
	if !ok {
		return nil, &ResolutionError{Domain: domain, Name: name,
			Reason: "no such built-in function"}
	}
	return v, nil
}

func checkDomainType(domain Domain, name string, v interface{}) (interface{}, error) {
	var ok bool
	switch domain {
	case ModelDomain:
		_, ok = v.(ModelFn)
	case DatasetDomain:
		_, ok = v.(DatasetFn)
	case TrainerDomain:
		_, ok = v.(TrainerFn)
	}
	if !ok {
		return nil, &ResolutionError{Domain: domain, Name: name,
			Reason: fmt.Sprintf("symbol is a %T, not a %s function", v, domain)}
	}
	return v, nil
}

// ResolveModelFn resolves name in the model domain.
func ResolveModelFn(name string) (ModelFn, error) {
	v, err := Resolve(ModelDomain, name)
	if err != nil {
		return nil, err
	}
	return v.(ModelFn), nil
}

// ResolveDatasetFn resolves name in the dataset domain.
func ResolveDatasetFn(name string) (DatasetFn, error) {
	v, err := Resolve(DatasetDomain, name)
	if err != nil {
		return nil, err
	}
	return v.(DatasetFn), nil
}

// ResolveTrainerFn resolves name in the trainer domain.
func ResolveTrainerFn(name string) (TrainerFn, error) {
	v, err := Resolve(TrainerDomain, name)
	if err != nil {
		return nil, err
	}
	return v.(TrainerFn), nil
}
