package mask

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Feature is a geometry with its attributes. Features are shared by pointer between
// feature sets and are never modified once loaded.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]any
}

// Attribute returns the named attribute rendered as a string.
func (f *Feature) Attribute(name string) (string, bool) {
	v, ok := f.Properties[name]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// FeatureSet is an ordered collection of features in a single CRS.
type FeatureSet struct {
	CRS      string
	Features []*Feature
}

func (fs FeatureSet) Len() int {
	return len(fs.Features)
}

func (fs FeatureSet) Empty() bool {
	return len(fs.Features) == 0
}

// Area sums the planar area of every polygon, in squared CRS units. Overlapping
// features are counted twice. Only meaningful for projected CRSs.
func (fs FeatureSet) Area() float64 {
	var total float64
	for _, f := range fs.Features {
		for _, p := range polygons(f.Geometry) {
			total += planar.Area(p)
		}
	}
	return total
}

// Predicate selects features.
type Predicate func(f *Feature) bool

// AttributeEquals matches features whose attribute is exactly value. The comparison is
// case sensitive.
func AttributeEquals(attribute, value string) Predicate {
	return func(f *Feature) bool {
		v, ok := f.Attribute(attribute)
		return ok && v == value
	}
}

// Select returns a new set with the features matching p, in input order.
func Select(fs FeatureSet, p Predicate) FeatureSet {
	out := FeatureSet{CRS: fs.CRS}
	for _, f := range fs.Features {
		if p(f) {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// Union returns the features of a followed by the features of b that are not already
// in a. Both sets must share a CRS.
func Union(a, b FeatureSet) (FeatureSet, error) {
	if !a.Empty() && !b.Empty() && a.CRS != b.CRS {
		return FeatureSet{}, &CRSMismatchError{Operation: "union", FeaturesCRS: b.CRS, TargetCRS: a.CRS}
	}
	return union(a, b), nil
}

func union(a, b FeatureSet) FeatureSet {
	out := FeatureSet{CRS: a.CRS, Features: make([]*Feature, 0, a.Len()+b.Len())}
	if out.CRS == "" {
		out.CRS = b.CRS
	}
	seen := make(map[*Feature]struct{}, a.Len()+b.Len())
	for _, set := range []FeatureSet{a, b} {
		for _, f := range set.Features {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// Filter keeps the features whose attribute equals any of values. Results for each
// value are accumulated with Union, so a feature appears once even if it matches twice.
func Filter(fs FeatureSet, attribute string, values ...string) FeatureSet {
	out := FeatureSet{CRS: fs.CRS}
	for _, value := range values {
		out = union(out, Select(fs, AttributeEquals(attribute, value)))
	}
	if out.Empty() {
		slog.Warn("filter matched no features", "attribute", attribute, "values", values, "features", fs.Len())
	}
	return out
}
