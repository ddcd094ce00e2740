package petstore

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// idFloor keeps generated ids clear of the small ids the public pet store seeds itself.
const idFloor = 10000

// idSpan keeps ids well below 2^53 so servers that store numbers as doubles keep them exact.
const idSpan = 1<<31 - idFloor

// Fixtures are the identifiers one scenario run creates remotely. Every call to
// NewFixtures yields a fresh set, so concurrent or repeated runs never share entities.
type Fixtures struct {
	Seed        string
	PetID       int64
	OrderID     int64
	UserID      int64
	Username    string
	MissingUser string
}

// NewFixtures derives a fixture set from a random UUID.
func NewFixtures() Fixtures {
	return FixturesFromSeed(uuid.NewString())
}

// FixturesFromSeed derives a deterministic fixture set from seed.
func FixturesFromSeed(seed string) Fixtures {
	suffix := strconv.FormatUint(xxhash.Sum64String(seed), 36)
	return Fixtures{
		Seed:        seed,
		PetID:       fixtureID(seed, "pet"),
		OrderID:     fixtureID(seed, "order"),
		UserID:      fixtureID(seed, "user"),
		Username:    "lion-" + suffix,
		MissingUser: "unknown-" + suffix,
	}
}

func fixtureID(seed, label string) int64 {
	h := xxhash.New()
	_, _ = h.WriteString(label)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(seed)
	return int64(h.Sum64()%idSpan) + idFloor
}
