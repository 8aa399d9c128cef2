package query

import (
	"strconv"
	"strings"
)

// Links derives the next and previous page URLs. A full page implies more
// results may follow.
func Links(rawURL string, skip, limit, returned int) (next, previous *string) {
	if limit > 0 && returned == limit {
		u := withSkip(rawURL, skip+limit)
		next = &u
	}

	if skip > 0 {
		prev := skip - limit
		if prev < 0 {
			prev = 0
		}
		u := withSkip(rawURL, prev)
		previous = &u
	}

	return next, previous
}

// withSkip replaces the skip parameter of rawURL, or appends it. Other
// parameters keep their order and encoding.
func withSkip(rawURL string, skip int) string {
	param := "skip=" + strconv.Itoa(skip)

	base, fragment := rawURL, ""
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base, fragment = base[:i], base[i:]
	}

	i := strings.IndexByte(base, '?')
	if i < 0 {
		return base + "?" + param + fragment
	}

	path, rawQuery := base[:i], base[i+1:]
	if rawQuery == "" {
		return path + "?" + param + fragment
	}

	parts := strings.Split(rawQuery, "&")
	replaced := false
	for j, part := range parts {
		key := part
		if k := strings.IndexByte(part, '='); k >= 0 {
			key = part[:k]
		}
		if key == "skip" {
			if replaced {
				parts[j] = ""
				continue
			}
			parts[j] = param
			replaced = true
		}
	}

	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	if !replaced {
		kept = append(kept, param)
	}

	return path + "?" + strings.Join(kept, "&") + fragment
}
