package compiler

import (
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// LoadEnv returns the KEY=VALUE entries from the dotenv file at path,
// followed by extra. Keys in extra override the file. An empty path
// skips the file.
func LoadEnv(path string, extra map[string]string) ([]string, error) {
	vars := make(map[string]string)

	if path != "" {
		fileVars, err := godotenv.Read(path)
		if err != nil {
			detail := "Failed to read " + path + ": " + err.Error()
			if os.IsNotExist(err) {
				detail = "Environment file " + path + " does not exist"
			}
			return nil, errors.New("E127").WithDetail(detail).Wrap(err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for k, v := range extra {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}
