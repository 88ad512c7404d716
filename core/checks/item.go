package checks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// Item is a named, versioned check-and-fix rule. ID is assigned once by
// NewItem and survives edits and republishing.
type Item struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name" validate:"required"`
	Version            string    `json:"version" validate:"required"`
	Description        string    `json:"description,omitempty"`
	DefaultDescription string    `json:"default_description" validate:"required"`
	Scope              Scope     `json:"scope" validate:"oneof=Project Book Chapter Verse"`
	Languages          []string  `json:"languages,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	CheckRegex         string    `json:"check_regex,omitempty" validate:"required_without=FixScript"`
	FixRegex           string    `json:"fix_regex,omitempty" validate:"excluded_without=CheckRegex"`
	FixScript          string    `json:"fix_script,omitempty" validate:"required_without=CheckRegex"`
}

// NewItem returns an item with a fresh ID and verse scope.
func NewItem(name, version string) Item {
	return Item{ID: uuid.New(), Name: name, Version: version, Scope: ScopeVerse}
}

// DisplayDescription is the description shown on findings.
func (it Item) DisplayDescription() string {
	if strings.TrimSpace(it.Description) != "" {
		return it.Description
	}
	return it.DefaultDescription
}

// Key identifies an item's name and version in a catalog.
func (it Item) Key() string {
	return strings.TrimSpace(it.Name) + "@" + strings.TrimSpace(it.Version)
}

var validate = validator.New()

var fieldNames = map[string]string{
	"Name":               "name",
	"Version":            "version",
	"DefaultDescription": "defaultDescription",
	"Scope":              "scope",
	"CheckRegex":         "checkRegex",
	"FixRegex":           "fixRegex",
	"FixScript":          "fixScript",
}

// Validate checks the item before it is saved or published. Each failure
// is an *errors.ValidationError naming the field a user has to correct.
func (it Item) Validate() error {
	if it.ID == uuid.Nil {
		return errors.NewValidation("id", "item has no id")
	}

	trimmed := it
	trimmed.Name = strings.TrimSpace(it.Name)
	trimmed.Version = strings.TrimSpace(it.Version)
	trimmed.DefaultDescription = strings.TrimSpace(it.DefaultDescription)
	trimmed.CheckRegex = strings.TrimSpace(it.CheckRegex)
	trimmed.FixScript = strings.TrimSpace(it.FixScript)

	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return validationMessage(verrs[0])
		}
		return errors.NewValidation("", err.Error())
	}

	if _, err := ParseVersion(trimmed.Version); err != nil {
		return errors.NewValidation("version", err.Error())
	}
	if it.CheckRegex != "" {
		if _, err := regexp.Compile(it.CheckRegex); err != nil {
			return errors.NewValidation("checkRegex", fmt.Sprintf("pattern does not compile: %v", err))
		}
	}
	return nil
}

func validationMessage(fe validator.FieldError) error {
	field := fieldNames[fe.Field()]
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return errors.NewValidation(field, "must not be empty")
	case "oneof":
		return errors.NewValidation(field, fmt.Sprintf("%q is not one of Project, Book, Chapter, Verse", fe.Value()))
	case "required_without":
		return errors.NewValidation("checkRegex", "an item needs a check regex or a fix script")
	case "excluded_without":
		return errors.NewValidation(field, "a fix regex needs a check regex to apply to")
	default:
		return errors.NewValidation(field, fmt.Sprintf("failed %s rule", fe.Tag()))
	}
}

// ParseVersion splits a dotted numeric version such as "1.2.10".
func ParseVersion(v string) ([]int, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("version %q is not dotted numbers", v)
		}
		out[i] = n
	}
	return out, nil
}

// CompareVersions returns -1, 0 or 1. Missing trailing components count as
// zero, so "1.2" equals "1.2.0". Unparseable versions compare as strings.
func CompareVersions(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	for i := 0; i < len(va) || i < len(vb); i++ {
		var x, y int
		if i < len(va) {
			x = va[i]
		}
		if i < len(vb) {
			y = vb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// AppliesTo reports whether the item is meant for a project language. Items
// without languages apply everywhere.
func (it Item) AppliesTo(language string) bool {
	if len(it.Languages) == 0 || language == "" {
		return true
	}
	for _, l := range it.Languages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}

// HasTag reports whether the item carries tag, ignoring case.
func (it Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
