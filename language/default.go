package language

import (
	"time"

	"github.com/codearena/judge/types"
)

// JavaScript runs the harness with node, no compile step
var JavaScript = Profile{
	ID:          types.LanguageJavaScript,
	Name:        "JavaScript",
	Version:     "Node.js 18+",
	Image:       "node:18-alpine",
	SourceFile:  "solution.js",
	HarnessFile: "runner.js",
	RunCmd:      "node runner.js",
	RunTimeout:  5 * time.Second,
}

// Java compiles Solution.java together with the generated Main.java
var Java = Profile{
	ID:             types.LanguageJava,
	Name:           "Java",
	Version:        "JDK 11+",
	Image:          "eclipse-temurin:17-jdk-alpine",
	SourceFile:     "Solution.java",
	HarnessFile:    "Main.java",
	CompileCmd:     "javac -encoding UTF-8 -nowarn -Xlint:none -XDsuppressNotes -d . Solution.java Main.java",
	RunCmd:         "java -Xss64m -XX:+UseSerialGC -cp . Main",
	CompileTimeout: 10 * time.Second,
	RunTimeout:     5 * time.Second,
	MemoryLimit:    512 << 20,
}

// Default returns a registry with the built-in profiles
func Default() *Registry {
	r, err := NewRegistry(JavaScript, Java)
	if err != nil {
		panic(err)
	}
	return r
}
