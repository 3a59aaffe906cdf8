package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Engine wraps a single gopher-lua VM bound to a scene through the global
// table "scene". Single-goroutine access only (frame loop).
//
// Object IDs cross into Lua as numbers; they stay exact while generations
// fit in 21 bits.
type Engine struct {
	vm   *lua.LState
	host Host
	log  *zap.Logger
}

// NewEngine creates a Lua engine bound to host and runs every *.lua file in
// scriptsDir in name order. A missing directory loads nothing.
func NewEngine(scriptsDir string, host Host, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, host: host, log: log}
	e.register()

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk in the engine's VM.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// --- hooks ---

// Start calls on_start().
func (e *Engine) Start() {
	e.callHook("on_start")
}

// OnFrame calls on_frame(frame, dt) with dt in seconds.
func (e *Engine) OnFrame(frame uint64, dt time.Duration) {
	e.callHook("on_frame", lua.LNumber(frame), lua.LNumber(dt.Seconds()))
}

// OnOutOfBounds calls on_out_of_bounds(id, graph).
func (e *Engine) OnOutOfBounds(id ecs.EntityID, graph string) {
	e.callHook("on_out_of_bounds", idValue(id), lua.LString(graph))
}

// HasHook reports whether the scripts define a global function name.
func (e *Engine) HasHook(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// callHook calls an optional global function. Script errors are logged and
// never reach the frame loop.
func (e *Engine) callHook(name string, args ...lua.LValue) {
	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
	}
}

// --- scene table ---

func (e *Engine) register() {
	t := e.vm.NewTable()
	e.vm.SetFuncs(t, map[string]lua.LGFunction{
		"spawn":    e.luaSpawn,
		"despawn":  e.luaDespawn,
		"move":     e.luaMove,
		"position": e.luaPosition,
		"query":    e.luaQuery,
		"tween":    e.luaTween,
		"velocity": e.luaVelocity,
		"attach":   e.luaAttach,
		"find":     e.luaFind,
		"frame":    e.luaFrame,
		"log":      e.luaLog,
	})
	e.vm.SetGlobal("scene", t)
}

// scene.spawn(graph, name, x, y, z [, ex, ey, ez]) -> id | nil, err
func (e *Engine) luaSpawn(L *lua.LState) int {
	graph := L.CheckString(1)
	name := L.OptString(2, "")
	pos := checkVec(L, 3)
	var extent r3.Vec
	if L.GetTop() >= 6 {
		extent = checkVec(L, 6)
	}
	id, err := e.host.Spawn(graph, name, pos, extent)
	if err != nil {
		return fail(L, err)
	}
	L.Push(idValue(id))
	return 1
}

// scene.despawn(id) -> true | nil, err
func (e *Engine) luaDespawn(L *lua.LState) int {
	return done(L, e.host.Despawn(checkID(L, 1)))
}

// scene.move(id, x, y, z) -> true | nil, err
func (e *Engine) luaMove(L *lua.LState) int {
	return done(L, e.host.Move(checkID(L, 1), checkVec(L, 2)))
}

// scene.position(id) -> x, y, z | nil
func (e *Engine) luaPosition(L *lua.LState) int {
	p, ok := e.host.Position(checkID(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(p.X))
	L.Push(lua.LNumber(p.Y))
	L.Push(lua.LNumber(p.Z))
	return 3
}

// scene.query(graph, cx, cy, cz, hx, hy, hz) -> {id, ...} | nil, err
func (e *Engine) luaQuery(L *lua.LState) int {
	graph := L.CheckString(1)
	ids, err := e.host.QueryBox(graph, checkVec(L, 2), checkVec(L, 5))
	if err != nil {
		return fail(L, err)
	}
	t := L.CreateTable(len(ids), 0)
	for _, id := range ids {
		t.Append(idValue(id))
	}
	L.Push(t)
	return 1
}

// scene.tween(id, x, y, z, seconds [, easing]) -> true | nil, err
func (e *Engine) luaTween(L *lua.LState) int {
	id := checkID(L, 1)
	target := checkVec(L, 2)
	secs := float64(L.CheckNumber(5))
	easing := L.OptString(6, "")
	d := time.Duration(secs * float64(time.Second))
	return done(L, e.host.TweenTo(id, target, d, easing))
}

// scene.velocity(id, vx, vy, vz) -> true | nil, err
func (e *Engine) luaVelocity(L *lua.LState) int {
	return done(L, e.host.SetVelocity(checkID(L, 1), checkVec(L, 2)))
}

// scene.attach(child, parent) -> true | nil, err
func (e *Engine) luaAttach(L *lua.LState) int {
	return done(L, e.host.Attach(checkID(L, 1), checkID(L, 2)))
}

// scene.find(name) -> id | nil
func (e *Engine) luaFind(L *lua.LState) int {
	id, ok := e.host.Find(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(idValue(id))
	return 1
}

func (e *Engine) luaFrame(L *lua.LState) int {
	L.Push(lua.LNumber(e.host.Frame()))
	return 1
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// --- helpers ---

func idValue(id ecs.EntityID) lua.LValue { return lua.LNumber(id) }

func checkID(L *lua.LState, n int) ecs.EntityID {
	return ecs.EntityID(L.CheckNumber(n))
}

func checkVec(L *lua.LState, n int) r3.Vec {
	return r3.Vec{
		X: float64(L.CheckNumber(n)),
		Y: float64(L.CheckNumber(n + 1)),
		Z: float64(L.OptNumber(n+2, 0)),
	}
}

func done(L *lua.LState, err error) int {
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func fail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
