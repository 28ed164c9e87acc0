// Command jubagen generates typed Go clients from Jubatus service schemas.
//
// For each service one file "<service>.jubatus.go" is written containing a
// type with one method per merged RPC method and its Async variant:
//
//	jubagen -out ./jubaclient -pkg jubaclient
//	jubagen -schemas ./api -out ./jubaclient -pkg jubaclient -svc classifier,stat
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/crow-misia/jubatus-go-client/client"
	"github.com/crow-misia/jubatus-go-client/schema"
	"github.com/crow-misia/jubatus-go-client/zlog"
)

var (
	schemaDir string
	outDir    string
	pkgName   string
	svcNames  string
	version   bool
)

func main() {
	flag.StringVar(&schemaDir, "schemas", "", "Schema directory. Use the bundled schemas if empty.")
	flag.StringVar(&outDir, "out", ".", "Output directory.")
	flag.StringVar(&pkgName, "pkg", "jubaclient", "Package name of generated files.")
	flag.StringVar(&svcNames, "svc", "", "Comma separated services to generate. All if empty.")
	flag.BoolVar(&version, "version", false, "Print version.")
	flag.Parse()

	if version {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("jubagen version=v? sum=?")
		} else {
			fmt.Printf("jubagen version=%s sum=%s\n", info.Main.Version, info.Main.Sum)
		}
		return
	}

	logger := zlog.DefaultZLogger.With().Str("component", "jubagen").Logger()

	var fsys fs.FS
	if schemaDir == "" {
		fsys = client.SchemaFS()
	} else {
		fsys = os.DirFS(schemaDir)
	}

	files, err := generateAll(fsys, pkgName, splitNames(svcNames))
	if err != nil {
		logger.Fatal().Err(err).Msg("Generate failed")
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("Create output directory failed")
	}
	for name, src := range files {
		file := filepath.Join(outDir, name)
		if err := ioutil.WriteFile(file, src, 0644); err != nil {
			logger.Fatal().Err(err).Str("file", file).Msg("Write failed")
		}
		logger.Info().Str("file", file).Msg("Generated")
	}
}

func splitNames(s string) []string {
	var ret []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			ret = append(ret, schema.ServiceName(strings.ToLower(name)))
		}
	}
	return ret
}

// generateAll returns generated sources keyed by file name.
func generateAll(fsys fs.FS, pkg string, only []string) (map[string][]byte, error) {
	svcs, err := schema.LoadMerged(fsys, ".")
	if err != nil {
		return nil, err
	}
	typeNames, err := TypeNames(fsys, ".")
	if err != nil {
		return nil, err
	}

	names := only
	if len(names) == 0 {
		names = schema.Names(svcs)
	}

	ret := make(map[string][]byte, len(names))
	for _, name := range names {
		svc := svcs[name]
		if svc == nil {
			return nil, fmt.Errorf("unknown service %q", name)
		}
		src, err := Generate(pkg, typeNames[name], svc)
		if err != nil {
			return nil, err
		}
		ret[name+".jubatus.go"] = src
	}
	return ret, nil
}
