package validator

import "github.com/go-playground/validator/v10"

// Validate is shared since validator caches struct metadata.
var Validate = validator.New()
