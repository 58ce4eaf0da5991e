package portal

import (
	"fmt"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
)

// Variant selects how the tax ID filter is filled on the query screen.
type Variant string

const (
	// VariantText types the tax ID into a plain input.
	VariantText Variant = "text"
	// VariantDropdown uses the searchable select2 dropdown of newer portal builds.
	VariantDropdown Variant = "dropdown"
)

// CategorySelectors locate one result tab of the FUR query screen.
type CategorySelectors struct {
	// Tab is an XPath to the tab link. Empty means the tab is open by default.
	Tab string
	// Scope is the CSS selector of the tab panel holding the results table.
	Scope string
	// ScrollContainer wraps the table and scrolls horizontally.
	ScrollContainer string
	// Rows matches every data row of the results table.
	Rows string
	// StatusHeader is an XPath to the "Estado FUR" header cell.
	StatusHeader string
	// NextPage matches an enabled pagination control.
	NextPage string
}

// Selectors holds every markup dependency on the SER portal.
type Selectors struct {
	Username        string
	Password        string
	LoginSubmit     string
	CaptchaOverride string
	PostLoginMarker string

	TaxID               string
	TaxIDDropdown       string
	TaxIDDropdownSearch string
	CaseNumber          string
	StartDate           string
	EndDate             string
	SearchButton        string
	SearchPanel         string

	PDFIcon string

	Categories map[string]CategorySelectors
}

// Category returns the selectors of a result category.
func (s Selectors) Category(name string) (CategorySelectors, error) {
	c, ok := s.Categories[name]
	if !ok {
		return CategorySelectors{}, fmt.Errorf("unknown result category %q", name)
	}
	return c, nil
}

// RowArtifact returns the selector of the PDF icon in the n-th (zero-based) row.
func (s Selectors) RowArtifact(c CategorySelectors, row int) string {
	return fmt.Sprintf("%s:nth-of-type(%d) %s", c.Rows, row+1, s.PDFIcon)
}

// captchaOverride replaces the client-side validation hooks of the login form
// so that submit is not blocked by an unsolved challenge.
const captchaOverride = `(() => {
	window.validarCaptcha = function () { return true; };
	window.ValidateCaptcha = function () { return true; };
	if (window.grecaptcha) { window.grecaptcha.getResponse = function () { return "ok"; }; }
	const form = document.querySelector("form");
	if (form) { form.onsubmit = null; }
	return true;
})()`

// DefaultSelectors matches the current SER portal markup.
var DefaultSelectors = Selectors{
	Username:        "#UserName",
	Password:        "#Password",
	LoginSubmit:     `form button[type="submit"], form input[type="submit"]`,
	CaptchaOverride: captchaOverride,
	PostLoginMarker: "body .navbar, body #menu",

	TaxID:               "#nitoperador",
	TaxIDDropdown:       "#select2-nitoperador-container",
	TaxIDDropdownSearch: ".select2-search__field",
	CaseNumber:          "#codigoexpediente",
	StartDate:           "#fechainicial",
	EndDate:             "#fechafinal",
	SearchButton:        "#link_aj5yn_xhs1d0",
	SearchPanel:         "#divbusqueda_xhs1d",

	PDFIcon: "a.jqNodivLoadingForm.fa.fa-file-pdf-o",

	Categories: map[string]CategorySelectors{
		layout.CategorySelfAssessment: {
			Tab:             `//a[@href="#tabs-1"]`,
			Scope:           "#tabs-1",
			ScrollContainer: "#tabs-1 .scrollBar",
			Rows:            "#tabs-1 table.scrollBarProcesada tbody tr",
			StatusHeader:    `//div[@id="tabs-1"]//th[contains(normalize-space(.), "Estado FUR")]`,
			NextPage:        "#tabs-1 .pagination li.next:not(.disabled) a, #tabs-1 a.next:not(.disabled)",
		},
		layout.CategoryObligation: {
			Tab:             `//a[contains(normalize-space(.), "FURs Generados para Obligación")]`,
			Scope:           "#tabs-2",
			ScrollContainer: "#tabs-2 .scrollBar",
			Rows:            "#tabs-2 table.scrollBarProcesada tbody tr",
			StatusHeader:    `//div[@id="tabs-2"]//th[contains(normalize-space(.), "Estado FUR")]`,
			NextPage:        "#tabs-2 .pagination li.next:not(.disabled) a, #tabs-2 a.next:not(.disabled)",
		},
	},
}

// panelCSS moves the floating search panel off the results table before captures.
func panelCSS(panel string) string {
	return fmt.Sprintf("%s { top: 0px !important; left: 900px !important; }", panel)
}
