//go:build !debug_bindless

package bindutils

// DebugEnabled is true when the debug_bindless build tag is present
const DebugEnabled bool = false

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_bindless build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugAssert panics with the formatted message if condition is false. This method no-ops unless the
// debug_bindless build tag is present.
func DebugAssert(condition bool, format string, args ...any) {
}
