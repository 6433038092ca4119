package localdb

import (
	"fmt"

	"github.com/msomdec/lifelink/internal/domain"
)

// Table identifies one of the emulated tables.
type Table int

const (
	TableProfiles Table = iota + 1
	TableUserRoles
	TableBloodRequests
	TableNotifications
	TableDonations
)

var tableNames = map[Table]string{
	TableProfiles:      "profiles",
	TableUserRoles:     "user_roles",
	TableBloodRequests: "blood_requests",
	TableNotifications: "notifications",
	TableDonations:     "donations",
}

// Tables lists every table in declaration order.
var Tables = []Table{TableProfiles, TableUserRoles, TableBloodRequests, TableNotifications, TableDonations}

func (t Table) String() string {
	if name, ok := tableNames[t]; ok {
		return name
	}
	return fmt.Sprintf("table(%d)", int(t))
}

func (t Table) Valid() bool {
	_, ok := tableNames[t]
	return ok
}

// ParseTable resolves a table name such as "blood_requests".
func ParseTable(name string) (Table, error) {
	for t, n := range tableNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown table %q", domain.ErrInvalidInput, name)
}
