//go:build !no_script

package script

// ScriptMeta holds user-editable metadata for a macro.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Script represents a single macro stored on disk.
type Script struct {
	ID       string     `json:"id"` // filename stem (no .lua)
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"` // raw Lua source (without header)
	FilePath string     `json:"-"`        // absolute path on disk
}
