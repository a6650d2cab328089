// Package dedup finds duplicate facility rows and removes the redundant ones.
package dedup

import (
	"fmt"
	"sort"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/textmatch"
)

// Reason names the pass that produced a cluster
type Reason string

const (
	ReasonExactLocation Reason = "exact_location"
	ReasonNameAddress   Reason = "name_address"
)

// Label is the operator-facing description of a reason
func (r Reason) Label() string {
	switch r {
	case ReasonExactLocation:
		return "same coordinates"
	case ReasonNameAddress:
		return "same name and address"
	}
	return string(r)
}

// Cluster is one group of rows considered the same facility
type Cluster struct {
	Reason    Reason
	Key       string
	Members   []*entities.Facility
	KeepID    string
	DeleteIDs []string

	// LostFields lists values present on a deleted member that the kept
	// member lacks. They are reported only; nothing is merged.
	LostFields []LostField
}

// LostField is a non-empty value that disappears when a member is deleted
type LostField struct {
	FacilityID string
	Field      string
	Value      string
}

// Result is the outcome of Detect
type Result struct {
	Scanned   int
	Clusters  []Cluster
	DeleteIDs []string
}

// keyFunc returns the grouping key of a row, or false to leave the row out of the pass
type keyFunc func(f *entities.Facility) (string, bool)

type pass struct {
	reason Reason
	key    keyFunc
}

// passes run in order; rows marked for deletion by an earlier pass are not
// candidates for a later one
var passes = []pass{
	{reason: ReasonExactLocation, key: locationKey},
	{reason: ReasonNameAddress, key: nameAddressKey},
}

// Detect groups facilities into duplicate clusters. Within a cluster the most
// recently created member is kept; on equal timestamps the later row in input
// order wins.
func Detect(facilities []*entities.Facility) Result {
	result := Result{Scanned: len(facilities)}
	claimed := make(map[string]struct{})

	for _, p := range passes {
		for _, g := range groupBy(facilities, p.key, claimed) {
			cluster := resolve(p.reason, g.key, g.members)
			for _, id := range cluster.DeleteIDs {
				if _, dup := claimed[id]; dup {
					continue
				}
				claimed[id] = struct{}{}
				result.DeleteIDs = append(result.DeleteIDs, id)
			}
			result.Clusters = append(result.Clusters, cluster)
		}
	}
	return result
}

type group struct {
	key     string
	members []*entities.Facility
}

// groupBy buckets rows by key, skipping claimed ids, and returns only buckets
// with at least two members in order of first appearance
func groupBy(facilities []*entities.Facility, key keyFunc, claimed map[string]struct{}) []group {
	index := make(map[string]int)
	var groups []group

	for _, f := range facilities {
		if f == nil {
			continue
		}
		if _, ok := claimed[f.ID]; ok {
			continue
		}
		k, ok := key(f)
		if !ok {
			continue
		}
		if i, seen := index[k]; seen {
			groups[i].members = append(groups[i].members, f)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, group{key: k, members: []*entities.Facility{f}})
	}

	dups := groups[:0]
	for _, g := range groups {
		if len(g.members) >= 2 {
			dups = append(dups, g)
		}
	}
	return dups
}

func resolve(reason Reason, key string, members []*entities.Facility) Cluster {
	sorted := make([]*entities.Facility, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	keep := sorted[len(sorted)-1]
	cluster := Cluster{
		Reason:  reason,
		Key:     key,
		Members: sorted,
		KeepID:  keep.ID,
	}
	for _, f := range sorted[:len(sorted)-1] {
		cluster.DeleteIDs = append(cluster.DeleteIDs, f.ID)
		cluster.LostFields = append(cluster.LostFields, lostFields(keep, f)...)
	}
	return cluster
}

func lostFields(keep, gone *entities.Facility) []LostField {
	var lost []LostField
	check := func(field, kept, dropped string) {
		if kept == "" && dropped != "" {
			lost = append(lost, LostField{FacilityID: gone.ID, Field: field, Value: dropped})
		}
	}

	check("name_kana", keep.NameKana, gone.NameKana)
	check("address", keep.Address, gone.Address)
	check("place_id", keep.PlaceID, gone.PlaceID)
	check("google_maps_url", keep.GoogleMapsURL, gone.GoogleMapsURL)
	check("phone", keep.Phone, gone.Phone)
	if _, _, ok := keep.Coordinates(); !ok {
		if lat, lng, ok := gone.Coordinates(); ok {
			lost = append(lost, LostField{FacilityID: gone.ID, Field: "lat,lng", Value: fmt.Sprintf("%.6f,%.6f", lat, lng)})
		}
	}
	return lost
}

// locationKey rounds to 7 decimals. Rows that differ only in the 7th decimal
// stay apart; float noise below that is folded together.
func locationKey(f *entities.Facility) (string, bool) {
	lat, lng, ok := f.Coordinates()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%.7f,%.7f", lat, lng), true
}

func nameAddressKey(f *entities.Facility) (string, bool) {
	name := textmatch.KeyFold(f.Name)
	if name == "" {
		return "", false
	}
	return name + "\x00" + textmatch.KeyFold(f.Address), true
}
