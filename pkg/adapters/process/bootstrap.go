package process

import (
	"encoding/json"
	"fmt"
)

// bootstrapTemplate is fed to node on stdin. It installs __hooks writing
// protocol records, replaces console output with the in-process rendering,
// then runs the prelude and the program as separate scripts.
const bootstrapTemplate = `"use strict";
const __fs = require("fs");
const __vm = require("vm");
const __write = (s) => {
  const b = Buffer.from(s);
  let off = 0;
  while (off < b.length) {
    try {
      off += __fs.writeSync(1, b, off);
    } catch (e) {
      if (e.code !== "EAGAIN") throw e;
    }
  }
};
const __emit = (m) => __write(%[1]q + JSON.stringify(m) + "\n");
const __safe = (v) => {
  if (v === undefined) return null;
  try {
    const s = JSON.stringify(v);
    return s === undefined ? "unserializable" : JSON.parse(s);
  } catch (e) {
    return "unserializable";
  }
};
const __vars = (vars) => {
  const out = {};
  for (const k of Object.keys(vars || {})) out[k] = __safe(vars[k]);
  return out;
};
globalThis.__hooks = {
  logStep: (line, kind, fn, vars) => __emit({ op: "step", line, kind, fn, vars: __vars(vars) }),
  updateScope: (name, value) => __emit({ op: "scope", name, value: __safe(value) }),
  logArrayState: (array, line, tag) => __emit({ op: "state", line, tag: tag || "", array: Array.isArray(array) ? array.map(__safe) : [] }),
};
const __format = (v) => {
  if (typeof v === "string") return v;
  if (v !== null && typeof v === "object") {
    try { return JSON.stringify(v); } catch (e) { return String(v); }
  }
  return String(v);
};
const __print = (...args) => __write(args.map(__format).join(" ") + "\n");
for (const k of ["log", "info", "warn", "error", "debug"]) console[k] = __print;
globalThis.print = __print;
try {
  __vm.runInThisContext(%[2]s, { filename: "prelude.js" });
  __vm.runInThisContext(%[3]s, { filename: "main.js" });
} catch (e) {
  __emit({ op: "error", message: String(e) });
  process.exitCode = 1;
}
`

// bootstrap renders the child script for prelude and source.
func bootstrap(prelude, source string) (string, error) {
	p, err := json.Marshal(prelude)
	if err != nil {
		return "", err
	}
	s, err := json.Marshal(source)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(bootstrapTemplate, Marker, p, s), nil
}
