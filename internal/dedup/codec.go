package dedup

import (
	"encoding/json"
	"sort"

	"github.com/nhle/bookingwatch/internal/model"
)

// The persisted layout matches what the web client kept in localStorage:
// id sets are JSON arrays of numbers, maps are arrays of [id, value] pairs.
// Decoders skip malformed elements instead of failing the whole entry.

func encodeIDSet(set map[int64]struct{}) (string, error) {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeIDSet(raw string) (map[int64]struct{}, int) {
	set := make(map[int64]struct{})
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return set, 1
	}

	skipped := 0
	for _, e := range elems {
		var id int64
		if err := json.Unmarshal(e, &id); err != nil || id <= 0 {
			skipped++
			continue
		}
		set[id] = struct{}{}
	}
	return set, skipped
}

func encodePairs[V ~string](m map[int64]V) (string, error) {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pairs := make([][2]any, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, [2]any{id, string(m[id])})
	}

	data, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodePairs(raw string) (map[int64]string, int) {
	m := make(map[int64]string)
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return m, 1
	}

	skipped := 0
	for _, e := range elems {
		var pair []json.RawMessage
		if err := json.Unmarshal(e, &pair); err != nil || len(pair) != 2 {
			skipped++
			continue
		}
		var id int64
		if err := json.Unmarshal(pair[0], &id); err != nil || id <= 0 {
			skipped++
			continue
		}
		// A null value is how the web client stored absent notes.
		var val *string
		if err := json.Unmarshal(pair[1], &val); err != nil {
			skipped++
			continue
		}
		if val == nil {
			m[id] = ""
		} else {
			m[id] = *val
		}
	}
	return m, skipped
}

func decodeStatuses(raw string) (map[int64]model.BookingStatus, int) {
	pairs, skipped := decodePairs(raw)
	out := make(map[int64]model.BookingStatus, len(pairs))
	for id, v := range pairs {
		st := model.BookingStatus(v)
		if !st.Valid() {
			skipped++
			continue
		}
		out[id] = st
	}
	return out, skipped
}
