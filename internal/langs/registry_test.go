package langs_test

import (
	"testing"

	"github.com/programme-lv/judge/internal/langs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := langs.Default()

	for _, id := range []string{"cpp", "c", "py", "java", "go"} {
		assert.True(t, r.IDs().Contains(id), id)
	}

	cpp, err := r.Resolve("cpp")
	require.NoError(t, err)
	assert.True(t, cpp.NeedsCompile())
	assert.True(t, cpp.LimitAddressSpace)
	assert.Equal(t,
		[]string{"g++", "-std=c++17", "-O2", "-pipe", "-o", "main", "main.cpp"},
		cpp.CompileArgv(langs.Vars{}))
	assert.Equal(t, []string{"./main"}, cpp.ExecArgv(langs.Vars{}))

	java, err := r.Resolve("java")
	require.NoError(t, err)
	assert.False(t, java.LimitAddressSpace)
	argv := java.ExecArgv(langs.Vars{Dir: "/w/1", MemoryBytes: 256 * 1024 * 1024})
	assert.Contains(t, argv, "-Xmx256m")
	assert.Contains(t, argv, "/w/1")

	goProfile, err := r.Resolve("go")
	require.NoError(t, err)
	env := goProfile.Environ(langs.Vars{CacheDir: "/var/cache/judge/toolchains"})
	assert.Contains(t, env, "GOCACHE=/var/cache/judge/toolchains/go-build")
	assert.Empty(t, cpp.Environ(langs.Vars{CacheDir: "/c"}))
}

func TestResolveUnknownLanguage(t *testing.T) {
	_, err := langs.Default().Resolve("brainfuck")
	require.ErrorIs(t, err, langs.ErrUnsupportedLanguage)
}

func TestResolveReturnsCopy(t *testing.T) {
	r := langs.Default()
	p, err := r.Resolve("py")
	require.NoError(t, err)
	p.ExecCmd[0] = "ruby"

	again, err := r.Resolve("py")
	require.NoError(t, err)
	assert.Equal(t, "python3", again.ExecCmd[0])
}

func TestParse(t *testing.T) {
	r, err := langs.Parse([]byte(`
[[languages]]
id = "sh"
code_fname = "main.sh"
exec_cmd = "sh -c 'exec sh {src}'"
`))
	require.NoError(t, err)

	sh, err := r.Resolve("sh")
	require.NoError(t, err)
	assert.False(t, sh.NeedsCompile())
	assert.Equal(t, "sh", sh.Name)
	assert.Equal(t, []string{"sh", "-c", "exec sh main.sh"}, sh.ExecArgv(langs.Vars{}))
	assert.NotEmpty(t, sh.OOMMarkers)
}

func TestParseEnv(t *testing.T) {
	r, err := langs.Parse([]byte(`
[[languages]]
id = "kt"
code_fname = "main.kt"
exec_cmd = "kotlin {src}"
env = ["KOTLIN_HOME={cache}/kotlin", "JAVA_OPTS=-Xmx{mem_mib}m"]
`))
	require.NoError(t, err)

	kt, err := r.Resolve("kt")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"KOTLIN_HOME=/c/kotlin", "JAVA_OPTS=-Xmx64m"},
		kt.Environ(langs.Vars{CacheDir: "/c", MemoryBytes: 64 * 1024 * 1024}))
}

func TestParseRejectsBadProfiles(t *testing.T) {
	cases := map[string]string{
		"duplicate id": `
[[languages]]
id = "a"
code_fname = "a"
exec_cmd = "./a"
[[languages]]
id = "a"
code_fname = "b"
exec_cmd = "./b"
`,
		"missing exec": `
[[languages]]
id = "a"
code_fname = "a"
`,
		"path in file name": `
[[languages]]
id = "a"
code_fname = "../a"
exec_cmd = "./a"
`,
		"env without value": `
[[languages]]
id = "a"
code_fname = "a"
exec_cmd = "./a"
env = ["JUSTAKEY"]
`,
		"unterminated quote": `
[[languages]]
id = "a"
code_fname = "a"
exec_cmd = "sh -c 'oops"
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := langs.Parse([]byte(doc))
			require.ErrorIs(t, err, langs.ErrInvalidProfile)
		})
	}
}

func TestRegistryWith(t *testing.T) {
	base := langs.Default()
	extra, err := langs.Parse([]byte(`
[[languages]]
id = "sh"
code_fname = "main.sh"
exec_cmd = "sh {src}"

[[languages]]
id = "py"
code_fname = "solution.py"
exec_cmd = "pypy3 {src}"
`))
	require.NoError(t, err)

	merged, err := base.With(extra.List()...)
	require.NoError(t, err)
	assert.True(t, merged.IDs().Contains("sh"))
	assert.True(t, merged.IDs().Contains("cpp"))

	py, err := merged.Resolve("py")
	require.NoError(t, err)
	assert.Equal(t, "solution.py", py.CodeFname)

	_, err = base.Resolve("sh")
	require.ErrorIs(t, err, langs.ErrUnsupportedLanguage)
}
