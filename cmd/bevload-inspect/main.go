// bevload-inspect loads a record index and reports what a training run
// would see: record counts, class histograms, and the tensor shapes of an
// assembled sample.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/rand"

	"github.com/helios-av/bevload/dataset"
)

func main() {
	logger := golog.NewDevelopmentLogger("bevload-inspect")
	app := &cli.App{
		Name:  "bevload-inspect",
		Usage: "inspect a multi-view detection dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path to a JSON dataset config",
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "info",
				Usage: "summarize the record index",
				Action: func(c *cli.Context) error {
					return runInfo(c, logger)
				},
			},
			{
				Name:  "sample",
				Usage: "assemble one sample and print its tensor shapes",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "index", Usage: "sample index", Value: 0},
					&cli.Uint64Flag{Name: "seed", Usage: "random seed", Value: 42},
				},
				Action: func(c *cli.Context) error {
					return runSample(c, logger)
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func loadConfig(path string) (dataset.Config, error) {
	var cfg dataset.Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %q", path)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decoding config %q", path)
	}
	return cfg, nil
}

func runInfo(c *cli.Context, logger golog.Logger) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	infos, err := dataset.LoadIndex(cfg.InfoPath)
	if err != nil {
		return err
	}

	scenes := map[string]int{}
	categories := map[string]int{}
	annotations := 0
	for i := range infos {
		scenes[infos[i].SceneToken]++
		for j := range infos[i].AnnInfos {
			categories[infos[i].AnnInfos[j].CategoryName]++
			annotations++
		}
	}

	fmt.Printf("records:     %d\n", len(infos))
	fmt.Printf("scenes:      %d\n", len(scenes))
	fmt.Printf("annotations: %d\n", annotations)
	for name, n := range categories {
		fmt.Printf("  %-40s %d\n", name, n)
	}
	return nil
}

func runSample(c *cli.Context, logger golog.Logger) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(c.Uint64("seed")))
	ds, err := dataset.NewDataset(cfg, rng, logger)
	if err != nil {
		return err
	}

	idx := c.Int("index")
	s, err := ds.Sample(idx, rng)
	if err != nil {
		return err
	}

	fmt.Printf("sample %d (token %s)\n", idx, s.Meta.Token)
	fmt.Printf("  imgs:            %v\n", s.Imgs.Shape())
	fmt.Printf("  sensor2ego:      %v\n", s.Sensor2EgoMats.Shape())
	fmt.Printf("  intrinsics:      %v\n", s.IntrinMats.Shape())
	fmt.Printf("  ida:             %v\n", s.IDAMats.Shape())
	fmt.Printf("  sensor2sensor:   %v\n", s.Sensor2SensorMats.Shape())
	fmt.Printf("  sensor2virtual:  %v\n", s.Sensor2VirtualMats.Shape())
	fmt.Printf("  bda:             %v\n", s.BDAMat.Shape())
	fmt.Printf("  timestamps:      %v\n", s.Timestamps.Shape())
	fmt.Printf("  ref heights:     %v\n", s.RefHeights.Shape())
	fmt.Printf("  boxes:           %d (type %s)\n", len(s.Boxes), s.Meta.BoxType)

	// first camera's key-frame chain, for eyeballing calibration issues
	s2e := s.Sensor2EgoMats.Data().([]float64)
	fmt.Println("  sensor2ego[0,0]:")
	for r := 0; r < 4; r++ {
		fmt.Printf("    % 10.4f % 10.4f % 10.4f % 10.4f\n",
			s2e[r*4], s2e[r*4+1], s2e[r*4+2], s2e[r*4+3])
	}
	if s.Depth != nil {
		fmt.Printf("  depth:           %v\n", s.Depth.Shape())
		fmt.Printf("  height:          %v\n", s.Height.Shape())
	}
	if !s.Meta.LidarValid {
		logger.Warn("sample was built with a placeholder point cloud")
	}
	return nil
}
