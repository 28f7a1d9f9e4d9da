package version

import "fmt"

// Derive computes the version to release and the next development version.
//
// Without a requested version the embedded build version is released with its
// pre-release tag stripped. A requested version is released verbatim. The next
// version bumps the pre-release number of a pre-release, or the last release
// component of a final release (starting a new "a1" cycle).
func Derive(requested *Version, embedded Version) (current, next Version, err error) {
	if embedded.IsZero() {
		return Version{}, Version{}, ErrNilVersion
	}

	if requested == nil {
		current = embedded.ReleaseOnly()
	} else {
		if requested.IsZero() {
			return Version{}, Version{}, ErrNilVersion
		}
		current = *requested
	}

	return current, Next(current), nil
}

// Next returns the development version following v.
func Next(v Version) Version {
	if v.IsPrerelease() {
		return Version{
			release: v.Release(),
			preTag:  v.preTag,
			preNum:  v.preNum + 1,
		}
	}

	release := v.Release()
	release[len(release)-1]++
	return Version{release: release, preTag: "a", preNum: 1}
}

// DeriveStrings parses both inputs and applies Derive. An empty requested
// string means no override.
func DeriveStrings(requested, embedded string) (current, next Version, err error) {
	emb, err := parse(embedded, OpParseEmbedded)
	if err != nil {
		return Version{}, Version{}, err
	}

	var req *Version
	if requested != "" {
		r, err := parse(requested, OpParseRequested)
		if err != nil {
			return Version{}, Version{}, err
		}
		req = &r
	}

	current, next, err = Derive(req, emb)
	if err != nil {
		return Version{}, Version{}, fmt.Errorf("derive from %q: %w", embedded, err)
	}
	return current, next, nil
}
