package test

import (
	"strings"
	"testing"
	"time"

	"github.com/cosmotek/loguago"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// LuaInit holds test globals shared by webmail Lua scripts under test.
const LuaInit = `
	local logger = require("logger")

	async = false
	asserts_ok = true

	-- With async: marks tests as failed via asserts_ok, logs error.
	-- Without async: erroring when tests fail.
	function assert_async(value, message)
		if not value then
			if async then
				logger.error(message, {from = "assert_async"})
				asserts_ok = false
			else
				error(message)
			end
		end
	end

	-- Verifies plain values and list-style tables.
	function assert_eq(got, want)
		if type(got) == "table" and type(want) == "table" then
			assert_async(#got == #want, string.format("got %d elements, wanted %d", #got, #want))
			for i, gotv in ipairs(got) do
				assert_eq(gotv, want[i])
			end
			return
		end

		assert_async(got == want, string.format("got %q, wanted %q", tostring(got), tostring(want)))
	end
`

// NewLuaState creates a new Lua LState initialized with logging and the test helpers in
// LuaInit.  Each register func is applied before the helpers run.
//
// Returns the LState and a string builder holding the log output.
func NewLuaState(register ...func(*lua.LState)) (*lua.LState, *strings.Builder) {
	output := &strings.Builder{}
	logger := loguago.NewLogger(zerolog.New(output))

	ls := lua.NewState()
	ls.PreloadModule("logger", logger.Loader)
	for _, r := range register {
		r(ls)
	}
	if err := ls.DoString(LuaInit); err != nil {
		panic(err)
	}

	return ls, output
}

// AssertNotified requires a truthy LValue on the notify channel.
func AssertNotified(t *testing.T, notify chan lua.LValue) {
	t.Helper()
	select {
	case reslv := <-notify:
		if lua.LVIsFalse(reslv) {
			t.Error("Lua responded with false, wanted true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lua did not respond to event within timeout")
	}
}
