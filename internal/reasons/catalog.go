// Package reasons holds the signature reason-code catalog.
package reasons

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

const (
	DefaultVersion    = "2024.1"
	DefaultCustomCode = "CUSTOM"
)

// Defaults is the catalog used when none is configured.
var Defaults = []domain.Reason{
	{Code: "APPROVE", Name: "Approval", Description: "Record reviewed and approved"},
	{Code: "REVIEW", Name: "Review", Description: "Record reviewed, no approval implied"},
	{Code: "RELEASE", Name: "Release", Description: "Equipment released for GMP use"},
	{Code: "WO_CLOSE", Name: "Work order closure", Description: "Work order completed and closed"},
	{Code: "CAL_ACCEPT", Name: "Calibration accepted", Description: "Calibration result within tolerance and accepted"},
	{Code: "SUPERSEDE", Name: "Superseding approval", Description: "Corrects or replaces an earlier signature"},
}

// Catalog is immutable once built.
type Catalog struct {
	version string
	custom  domain.Reason
	byCode  map[string]domain.Reason
}

// New builds a catalog. Codes are upper-cased; the custom code may not
// also appear among the regular codes.
func New(version, customCode string, codes []domain.Reason) (*Catalog, error) {
	if strings.TrimSpace(version) == "" {
		version = DefaultVersion
	}
	customCode = strings.ToUpper(strings.TrimSpace(customCode))
	if customCode == "" {
		customCode = DefaultCustomCode
	}
	if len(codes) == 0 {
		codes = Defaults
	}

	byCode := make(map[string]domain.Reason, len(codes))
	for _, r := range codes {
		r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
		if r.Code == "" {
			return nil, fmt.Errorf("reason code is empty")
		}
		if r.Code == customCode {
			return nil, fmt.Errorf("reason %s collides with the custom code", r.Code)
		}
		if _, dup := byCode[r.Code]; dup {
			return nil, fmt.Errorf("reason %s listed twice", r.Code)
		}
		if r.Name == "" {
			r.Name = r.Code
		}
		byCode[r.Code] = r
	}

	return &Catalog{
		version: version,
		custom:  domain.Reason{Code: customCode, Name: "Custom reason", Description: "Free-text justification supplied by the signer"},
		byCode:  byCode,
	}, nil
}

// Lookup finds code among the regular reasons or the custom code.
func (c *Catalog) Lookup(code string) (domain.Reason, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == c.custom.Code {
		return c.custom, true
	}
	r, ok := c.byCode[code]
	return r, ok
}

func (c *Catalog) CustomCode() string { return c.custom.Code }

func (c *Catalog) Version() string { return c.version }

// Reasons lists the regular reasons by code, then the custom one.
func (c *Catalog) Reasons() []domain.Reason {
	out := make([]domain.Reason, 0, len(c.byCode)+1)
	for _, r := range c.byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return append(out, c.custom)
}
