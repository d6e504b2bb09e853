package compiler

// Prelude installs the __trace helpers used by instrumented code on top of the
// three host hooks exposed as __hooks (logStep, updateScope, logArrayState).
// It must run before the instrumented program, in the same global scope.
//
// Reader closures are evaluated inside try/catch: a variable that cannot be
// read yields "undefined" instead of aborting the run.
const Prelude = `var __trace = (function (hooks) {
	var frames = [];
	function read(fn) {
		try {
			return fn();
		} catch (e) {
			return "undefined";
		}
	}
	function args(fn) {
		if (typeof fn !== "function") {
			return {};
		}
		var v = read(fn);
		return v !== null && typeof v === "object" ? v : {};
	}
	return {
		line: function (line, vars) {
			hooks.logStep(line, "line", null, args(vars));
		},
		enter: function (line, name, vars) {
			frames.push({ name: name, ret: 0 });
			hooks.logStep(line, "call", name, args(vars));
		},
		at: function (line) {
			if (frames.length > 0) {
				frames[frames.length - 1].ret = line;
			}
		},
		leave: function (line, vars) {
			var frame = frames.pop() || { name: null, ret: 0 };
			hooks.logStep(frame.ret || line, "return", frame.name, args(vars));
		},
		assign: function (line, name, value, vars) {
			hooks.updateScope(name, read(value));
			hooks.logStep(line, "assign", null, args(vars));
		},
		state: function (line, value, tag) {
			var v = read(value);
			if (Array.isArray(v)) {
				hooks.logArrayState(v, line, tag || "");
			}
		}
	};
})(__hooks);
`
