package domain

// IntakeForm is the structured project-request payload submitted as the
// first message of a conversation. Field names match the stored
// form_submission content.
type IntakeForm struct {
	BrandBusinessName    string   `json:"brandBusinessName"`
	BusinessType         string   `json:"businessType"`
	HasDomain            string   `json:"hasDomain"`
	DomainName           string   `json:"domainName,omitempty"`
	LogoUpload           string   `json:"logoUpload"`
	PreferredColorTheme  string   `json:"preferredColorTheme"`
	ExtraFunctionalities []string `json:"extraFunctionalities,omitempty"`
}

// BusinessTypes are the accepted values for IntakeForm.BusinessType.
var BusinessTypes = []string{
	"Ecommerce",
	"Service Business",
	"Personal Portfolio",
	"Blog",
	"Landing Page",
	"Company Website",
	"Agency",
	"Others",
}

// HasDomainOptions are the accepted values for IntakeForm.HasDomain.
var HasDomainOptions = []string{"Yes", "No", "Want to buy"}

// LogoUploadOptions are the accepted values for IntakeForm.LogoUpload.
var LogoUploadOptions = []string{"Yes", "No"}

// ColorThemes are the accepted values for IntakeForm.PreferredColorTheme.
var ColorThemes = []string{"Light", "Dark", "Others"}

// ExtraFunctionalityCatalog lists the selectable add-on features.
var ExtraFunctionalityCatalog = []string{
	"User Login System",
	"Admin Dashboard",
	"Blog System",
	"Review & rating",
	"Chat system",
	"Multi-language",
	"SEO optimization",
}

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// Validate checks the intake form against the field catalogs. The
// domain name is required only when the requester already has one.
func (f *IntakeForm) Validate() error {
	if f.BrandBusinessName == "" {
		return &ErrValidation{Field: "brandBusinessName", Message: "is required"}
	}
	if !oneOf(f.BusinessType, BusinessTypes) {
		return &ErrValidation{Field: "businessType", Message: "must be one of the listed business types"}
	}
	if !oneOf(f.HasDomain, HasDomainOptions) {
		return &ErrValidation{Field: "hasDomain", Message: "must be Yes, No or Want to buy"}
	}
	if f.HasDomain == "Yes" && f.DomainName == "" {
		return &ErrValidation{Field: "domainName", Message: "is required when a domain already exists"}
	}
	if !oneOf(f.LogoUpload, LogoUploadOptions) {
		return &ErrValidation{Field: "logoUpload", Message: "must be Yes or No"}
	}
	if !oneOf(f.PreferredColorTheme, ColorThemes) {
		return &ErrValidation{Field: "preferredColorTheme", Message: "must be Light, Dark or Others"}
	}
	for _, fn := range f.ExtraFunctionalities {
		if !oneOf(fn, ExtraFunctionalityCatalog) {
			return &ErrValidation{Field: "extraFunctionalities", Message: "unknown functionality: " + fn}
		}
	}
	return nil
}
