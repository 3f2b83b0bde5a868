// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// ceremony.go implements a multi-party Groth16 setup for Backend B on
// BLS12-381, in two phases: Phase 1 (powers of tau, circuit-independent)
// and Phase 2 (circuit-specific), each accumulating a chain of file-based
// contributions that can be verified independently of the contributors.
package composerplonk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	mpcsetup "github.com/consensys/gnark/backend/groth16/bls12-381/mpcsetup"
	"github.com/consensys/gnark/constraint"
	cs "github.com/consensys/gnark/constraint/bls12-381"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

func findContributions(dir string, phase int) ([]string, error) {
	prefix := fmt.Sprintf("phase%d_", phase)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bin") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func latestContribution(dir string, phase int) (string, int, error) {
	paths, err := findContributions(dir, phase)
	if err != nil {
		return "", 0, err
	}
	if len(paths) == 0 {
		return "", 0, fmt.Errorf("no phase %d contributions found in %s", phase, dir)
	}
	last := paths[len(paths)-1]
	base := filepath.Base(last)
	numStr := strings.TrimSuffix(strings.TrimPrefix(base, fmt.Sprintf("phase%d_", phase)), ".bin")
	idx, err := strconv.Atoi(numStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse contribution index from %s: %w", base, err)
	}
	return last, idx, nil
}

func contributionPath(dir string, phase, index int) string {
	return filepath.Join(dir, fmt.Sprintf("phase%d_%04d.bin", phase, index))
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func savePhase1(path string, p *mpcsetup.Phase1) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := p.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadPhase1(path string) (*mpcsetup.Phase1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	p := new(mpcsetup.Phase1)
	if _, err := p.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p, nil
}

func savePhase2(path string, p *mpcsetup.Phase2) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := p.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadPhase2(path string) (*mpcsetup.Phase2, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	p := new(mpcsetup.Phase2)
	if _, err := p.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p, nil
}

func saveSrsCommons(path string, c *mpcsetup.SrsCommons) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := c.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadSrsCommons(path string) (*mpcsetup.SrsCommons, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	c := new(mpcsetup.SrsCommons)
	if _, err := c.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c, nil
}

func saveCCS(path string, ccs constraint.ConstraintSystem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := ccs.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadR1CS(path string) (*cs.R1CS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	ccs := groth16.NewCS(ecc.BLS12_381)
	if _, err := ccs.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r1, ok := ccs.(*cs.R1CS)
	if !ok {
		return nil, fmt.Errorf("CCS is not *bls12381.R1CS: %T", ccs)
	}
	return r1, nil
}

func domainSize(ccs constraint.ConstraintSystem) uint64 {
	return ecc.NextPowerOfTwo(uint64(ccs.GetNbConstraints()))
}

// CeremonyInit compiles e's circuit shape, saves ccs.bin under dir, and
// creates the initial Phase1 accumulator.
func CeremonyInit(dir string, e *Emitter, force bool) error {
	if _, err := os.Stat(filepath.Join(dir, "ccs.bin")); err == nil && !force {
		return fmt.Errorf("ceremony already initialized in %s (use force to overwrite)", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	shape, _ := newShape(e)
	ccs, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, shape)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := saveCCS(filepath.Join(dir, "ccs.bin"), ccs); err != nil {
		return err
	}

	n := domainSize(ccs)
	p1 := mpcsetup.NewPhase1(n)
	if err := savePhase1(contributionPath(dir, 1, 0), p1); err != nil {
		return err
	}
	return nil
}

// CeremonyContributePhase1 loads the latest Phase1 accumulator,
// contributes, and saves the result, returning its index and hash.
func CeremonyContributePhase1(dir string) (int, string, error) {
	latestPath, idx, err := latestContribution(dir, 1)
	if err != nil {
		return 0, "", err
	}
	p1, err := loadPhase1(latestPath)
	if err != nil {
		return 0, "", fmt.Errorf("load latest phase1: %w", err)
	}
	p1.Contribute()

	nextIdx := idx + 1
	nextPath := contributionPath(dir, 1, nextIdx)
	if err := savePhase1(nextPath, p1); err != nil {
		return 0, "", err
	}
	hash, err := fileHash(nextPath)
	if err != nil {
		return nextIdx, "", fmt.Errorf("hash contribution: %w", err)
	}
	return nextIdx, hash, nil
}

// CeremonyContributePhase2 loads the latest Phase2 accumulator,
// contributes, and saves the result, returning its index and hash.
func CeremonyContributePhase2(dir string) (int, string, error) {
	latestPath, idx, err := latestContribution(dir, 2)
	if err != nil {
		return 0, "", err
	}
	p2, err := loadPhase2(latestPath)
	if err != nil {
		return 0, "", fmt.Errorf("load latest phase2: %w", err)
	}
	p2.Contribute()

	nextIdx := idx + 1
	nextPath := contributionPath(dir, 2, nextIdx)
	if err := savePhase2(nextPath, p2); err != nil {
		return 0, "", err
	}
	hash, err := fileHash(nextPath)
	if err != nil {
		return nextIdx, "", fmt.Errorf("hash contribution: %w", err)
	}
	return nextIdx, hash, nil
}

// CeremonyVerifyPhase1 verifies every contribution pair sequentially.
func CeremonyVerifyPhase1(dir string) (int, error) {
	paths, err := findContributions(dir, 1)
	if err != nil {
		return 0, err
	}
	if len(paths) < 2 {
		return 0, fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}
	prev, err := loadPhase1(paths[0])
	if err != nil {
		return 0, fmt.Errorf("load initial: %w", err)
	}
	verified := 0
	for i := 1; i < len(paths); i++ {
		next, err := loadPhase1(paths[i])
		if err != nil {
			return verified, fmt.Errorf("load contribution %d: %w", i, err)
		}
		if err := prev.Verify(next); err != nil {
			return verified, fmt.Errorf("contribution %d invalid: %w", i, err)
		}
		verified++
		prev = next
	}
	return verified, nil
}

// CeremonyVerifyPhase2 verifies every contribution pair sequentially.
func CeremonyVerifyPhase2(dir string) (int, error) {
	paths, err := findContributions(dir, 2)
	if err != nil {
		return 0, err
	}
	if len(paths) < 2 {
		return 0, fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}
	prev, err := loadPhase2(paths[0])
	if err != nil {
		return 0, fmt.Errorf("load initial: %w", err)
	}
	verified := 0
	for i := 1; i < len(paths); i++ {
		next, err := loadPhase2(paths[i])
		if err != nil {
			return verified, fmt.Errorf("load contribution %d: %w", i, err)
		}
		if err := prev.Verify(next); err != nil {
			return verified, fmt.Errorf("contribution %d invalid: %w", i, err)
		}
		verified++
		prev = next
	}
	return verified, nil
}

// CeremonyFinalizePhase1 verifies all Phase1 contributions, seals with
// beacon, derives the SRS commons, and initializes Phase2.
func CeremonyFinalizePhase1(dir string, beacon []byte) error {
	r1, err := loadR1CS(filepath.Join(dir, "ccs.bin"))
	if err != nil {
		return fmt.Errorf("load ccs: %w", err)
	}
	n := domainSize(r1)

	paths, err := findContributions(dir, 1)
	if err != nil {
		return err
	}
	if len(paths) < 2 {
		return fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}
	contributions := make([]*mpcsetup.Phase1, len(paths)-1)
	for i := 1; i < len(paths); i++ {
		p, err := loadPhase1(paths[i])
		if err != nil {
			return fmt.Errorf("load phase1 contribution %d: %w", i, err)
		}
		contributions[i-1] = p
	}

	commons, err := mpcsetup.VerifyPhase1(n, beacon, contributions...)
	if err != nil {
		return fmt.Errorf("verify phase1: %w", err)
	}
	if err := saveSrsCommons(filepath.Join(dir, "commons.bin"), &commons); err != nil {
		return err
	}

	var p2 mpcsetup.Phase2
	p2.Initialize(r1, &commons)
	return savePhase2(contributionPath(dir, 2, 0), &p2)
}

// CeremonyFinalizePhase2 verifies all Phase2 contributions, seals with
// beacon, and writes the final proving/verifying keys to dir.
func CeremonyFinalizePhase2(dir string, beacon []byte) error {
	r1, err := loadR1CS(filepath.Join(dir, "ccs.bin"))
	if err != nil {
		return fmt.Errorf("load ccs: %w", err)
	}
	commons, err := loadSrsCommons(filepath.Join(dir, "commons.bin"))
	if err != nil {
		return fmt.Errorf("load commons: %w", err)
	}

	paths, err := findContributions(dir, 2)
	if err != nil {
		return err
	}
	if len(paths) < 2 {
		return fmt.Errorf("need at least 1 contribution beyond the initial (found %d files)", len(paths))
	}
	contributions := make([]*mpcsetup.Phase2, len(paths)-1)
	for i := 1; i < len(paths); i++ {
		p, err := loadPhase2(paths[i])
		if err != nil {
			return fmt.Errorf("load phase2 contribution %d: %w", i, err)
		}
		contributions[i-1] = p
	}

	pk, vk, err := mpcsetup.VerifyPhase2(r1, commons, beacon, contributions...)
	if err != nil {
		return fmt.Errorf("verify phase2: %w", err)
	}

	pkFile, err := os.Create(filepath.Join(dir, "pk.bin"))
	if err != nil {
		return fmt.Errorf("create pk.bin: %w", err)
	}
	defer pkFile.Close()
	if _, err := pk.WriteTo(pkFile); err != nil {
		return fmt.Errorf("write pk.bin: %w", err)
	}

	vkFile, err := os.Create(filepath.Join(dir, "vk.bin"))
	if err != nil {
		return fmt.Errorf("create vk.bin: %w", err)
	}
	defer vkFile.Close()
	if _, err := vk.WriteTo(vkFile); err != nil {
		return fmt.Errorf("write vk.bin: %w", err)
	}
	return nil
}
