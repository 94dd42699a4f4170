package planner

import (
	"context"
	"strings"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/lexcodex/devbridge/internal/refactor"
)

// CreatePackage scaffolds a new package under workspaceRoot by
// delegating file-op and manifest generation to the plugin registered
// for the workspace's manifest extension (spec §4.5.5).
func (c *Context) CreatePackage(ctx context.Context, workspaceRoot, newPackageRelPath, kind, manifestExt string) (*refactor.Plan, error) {
	root, err := c.Resolver.Resolve(workspaceRoot)
	if err != nil {
		return nil, err
	}
	creator, err := requireCapability[plugin.PackageCreator](c.Registry, manifestExt, plugin.CapPackageCreator, proto.URI(pathutil.ToURI(root)))
	if err != nil {
		return nil, err
	}
	fileOps, manifestBytes, err := creator.CreatePackage(ctx, root, newPackageRelPath, kind)
	if err != nil {
		return nil, wrapPluginErr(err, "create package", newPackageRelPath)
	}

	plan := refactor.New(refactor.PlanPackageCreate)
	plan.Metadata["newPackageRelPath"] = newPackageRelPath
	plan.Metadata["kind"] = kind
	for _, op := range fileOps {
		plan.Edit.AddFileOp(op)
	}
	if manifestBytes != nil {
		manifestPath, err := c.Resolver.Resolve(newPackageRelPath + "/manifest")
		if err == nil {
			plan.Edit.AddFileOp(proto.FileOp{
				Kind:    proto.FileOpCreate,
				NewURI:  proto.URI(pathutil.ToURI(manifestPath)),
				Content: manifestBytes,
			})
		}
	}
	return plan, nil
}

// ExtractDependencies moves the named dependencies out of srcManifest and
// into dstManifest (spec §4.5.5), delegating the manifest math to each
// file's own plugin (the two manifests may belong to different language
// ecosystems only if both register the same extension's plugin; the
// common case is a single-language workspace).
func (c *Context) ExtractDependencies(ctx context.Context, srcManifestPath, dstManifestPath string, names []string) (*refactor.Plan, error) {
	srcAbs, err := c.Resolver.Resolve(srcManifestPath)
	if err != nil {
		return nil, err
	}
	dstAbs, err := c.Resolver.Resolve(dstManifestPath)
	if err != nil {
		return nil, err
	}

	srcURI := proto.URI(pathutil.ToURI(srcAbs))
	srcPlugin, err := requireCapability[plugin.ManifestPlugin](c.Registry, extOf(srcAbs), plugin.CapManifestPlugin, srcURI)
	if err != nil {
		return nil, err
	}
	srcManifest, err := srcPlugin.AnalyzeManifest(ctx, srcAbs)
	if err != nil {
		return nil, wrapPluginErr(err, "analyze manifest", srcAbs)
	}

	var moved []proto.Dependency
	var remaining []proto.Dependency
	for _, dep := range srcManifest.Dependencies {
		if containsName(names, dep.Name) {
			moved = append(moved, dep)
		} else {
			remaining = append(remaining, dep)
		}
	}
	if len(moved) == 0 {
		return nil, errs.New(errs.InvalidArgs, "none of the requested dependencies are present in %s", srcManifestPath)
	}

	newSrcManifest, err := srcPlugin.UpdateManifestDependencies(ctx, srcManifest, nil, moved)
	if err != nil {
		return nil, wrapPluginErr(err, "update manifest", srcAbs)
	}

	dstURI := proto.URI(pathutil.ToURI(dstAbs))
	dstPlugin, err := requireCapability[plugin.ManifestPlugin](c.Registry, extOf(dstAbs), plugin.CapManifestPlugin, dstURI)
	if err != nil {
		return nil, err
	}
	dstManifest, err := dstPlugin.AnalyzeManifest(ctx, dstAbs)
	if err != nil {
		return nil, wrapPluginErr(err, "analyze manifest", dstAbs)
	}
	newDstManifest, err := dstPlugin.UpdateManifestDependencies(ctx, dstManifest, moved, nil)
	if err != nil {
		return nil, wrapPluginErr(err, "update manifest", dstAbs)
	}

	plan := refactor.New(refactor.PlanExtractDeps)
	plan.Metadata["moved"] = names
	srcContent, _, err := c.readAndChecksum(plan, srcAbs)
	if err != nil {
		return nil, err
	}
	dstContent, _, err := c.readAndChecksum(plan, dstAbs)
	if err != nil {
		return nil, err
	}

	plan.Edit.AddEdit(srcURI, wholeFileReplace(srcContent, newSrcManifest.Raw))
	plan.Edit.AddEdit(dstURI, wholeFileReplace(dstContent, newDstManifest.Raw))

	if newSrcManifest.Raw == nil {
		plan.Warn("ManifestRewriteUnavailable", "plugin did not return serialized manifest bytes for "+srcManifestPath, nil)
	}
	return plan, nil
}

// UpdateMembers adjusts a workspace manifest's member list (spec
// §4.5.5), used after directory moves that change which package roots
// belong to the workspace.
func (c *Context) UpdateMembers(ctx context.Context, manifestPath string, addMembers, removeMembers []string) (*refactor.Plan, error) {
	abs, err := c.Resolver.Resolve(manifestPath)
	if err != nil {
		return nil, err
	}
	uri := proto.URI(pathutil.ToURI(abs))
	mp, err := requireCapability[plugin.ManifestPlugin](c.Registry, extOf(abs), plugin.CapManifestPlugin, uri)
	if err != nil {
		return nil, err
	}
	manifest, err := mp.AnalyzeManifest(ctx, abs)
	if err != nil {
		return nil, wrapPluginErr(err, "analyze manifest", abs)
	}

	members := make(map[string]bool)
	for _, m := range manifest.Members {
		members[m] = true
	}
	for _, m := range removeMembers {
		delete(members, m)
	}
	for _, m := range addMembers {
		members[m] = true
	}
	newMembers := make([]string, 0, len(members))
	for m := range members {
		newMembers = append(newMembers, m)
	}
	manifest.Members = newMembers

	updated, err := mp.UpdateManifestDependencies(ctx, manifest, nil, nil)
	if err != nil {
		return nil, wrapPluginErr(err, "update manifest members", abs)
	}

	plan := refactor.New(refactor.PlanUpdateMembers)
	plan.Metadata["addMembers"] = addMembers
	plan.Metadata["removeMembers"] = removeMembers
	content, _, err := c.readAndChecksum(plan, abs)
	if err != nil {
		return nil, err
	}
	plan.Edit.AddEdit(uri, wholeFileReplace(content, updated.Raw))
	return plan, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// wholeFileReplace builds a single TextEdit spanning the entire old
// content, used by the manifest planners whose plugins round-trip a
// whole file rather than targeted line edits.
func wholeFileReplace(oldContent, newContent []byte) proto.TextEdit {
	lines := len(strings.Split(string(oldContent), "\n"))
	return proto.TextEdit{
		Range: proto.Range{
			Start: proto.Position{Line: 0, Character: 0},
			End:   proto.Position{Line: uint32(lines), Character: 0},
		},
		NewText: string(newContent),
	}
}
