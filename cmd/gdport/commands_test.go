package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gdport/pkg/rules"
)

const sampleScene = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &100
GameObject:
  m_Name: Player
--- !u!4 &101
Transform:
  m_GameObject: {fileID: 100}
--- !u!1 &200
GameObject:
  m_Name: Enemy
`

func TestRulesCmd_PrintsDefaults(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "rules")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "MonoBehaviour: Node")
	assert.Contains(t, res.stdout, "partial_classes: false")
}

func TestRulesCmd_MergesRulesFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "rules.yaml"), "type_renames:\n  Rigidbody2D: RigidBody2D\n")

	res := runCLI(t, "", "rules", "--rules", path, "--partial")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Rigidbody2D: RigidBody2D")
	assert.Contains(t, res.stdout, "Animator: AnimationPlayer")
	assert.Contains(t, res.stdout, "partial_classes: true")
}

func TestRulesCmd_Validate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := writeFile(t, filepath.Join(dir, "valid.yaml"), "imports:\n  UnityEngine: Godot\n")
	invalid := writeFile(t, filepath.Join(dir, "invalid.yaml"), "lifecycle: 5\n")

	res := runCLI(t, "", "rules", "--validate", "--rules", valid)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "is a valid rules file")

	res = runCLI(t, "", "rules", "--validate", "--rules", invalid)
	require.ErrorIs(t, res.err, rules.ErrInvalidRules)
	assert.Contains(t, res.stderr, "invalid.yaml")

	res = runCLI(t, "", "rules", "--validate")
	require.ErrorIs(t, res.err, ErrNoRulesFile)
}

func TestRulesCmd_Schema(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "rules", "--schema")
	require.NoError(t, res.err)
	assert.True(t, json.Valid([]byte(res.stdout)))
}

func TestSceneCmd(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "Main.unity"), sampleScene)

	res := runCLI(t, "", "scene", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "GameObject")
	assert.Contains(t, res.stdout, "Transform")

	res = runCLI(t, "", "scene", "--format", "json", path)
	require.NoError(t, res.err)

	var merged map[string]map[string]any

	require.NoError(t, json.Unmarshal([]byte(res.stdout), &merged))
	assert.Equal(t, "Enemy", merged["GameObject"]["m_Name"])
	assert.Contains(t, merged, "Transform")
}

func TestSceneCmd_MissingFile(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "scene", filepath.Join(t.TempDir(), "missing.unity"))
	require.Error(t, res.err)
}
