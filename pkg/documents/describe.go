package documents

import (
	"context"
	"fmt"

	"github.com/morezero/valuestore/pkg/catalog"
	"github.com/morezero/valuestore/pkg/typeinfo"
)

// DescribeType describes one catalogued type, or all of them.
func (s *Service) DescribeType(_ context.Context, input *DescribeTypeInput) (*DescribeTypeOutput, error) {
	cat := s.lib.Catalog()

	if input.Type == "" {
		descs := cat.Describe()
		out := &DescribeTypeOutput{Types: make([]TypeInfo, 0, len(descs))}
		for _, d := range descs {
			out.Types = append(out.Types, s.typeInfo(cat, d))
		}
		return out, nil
	}

	t, ok := s.lib.ResolveType(input.Type, typeinfo.TypeInfo{})
	if !ok {
		return nil, &ServiceError{Code: CodeUnknownType, Message: fmt.Sprintf("type %q is not in the catalog", input.Type)}
	}
	desc, ok := cat.DescribeType(t.Name())
	if !ok {
		return nil, &ServiceError{Code: CodeUnknownType, Message: fmt.Sprintf("type %q is not in the catalog", input.Type)}
	}
	return &DescribeTypeOutput{Types: []TypeInfo{s.typeInfo(cat, desc)}}, nil
}

func (s *Service) typeInfo(cat *catalog.Catalog, desc catalog.TypeDescription) TypeInfo {
	info := TypeInfo{TypeDescription: desc}
	t, ok := cat.Lookup(desc.Name)
	if !ok {
		return info
	}
	for _, sub := range cat.SubtypesOf(t) {
		info.Subtypes = append(info.Subtypes, sub.Name())
	}
	_, info.HasHandler = s.lib.Lookup(t)
	return info
}

// ResolveType resolves a type tag the way the dispatcher of Within would.
func (s *Service) ResolveType(_ context.Context, input *ResolveTypeInput) (*ResolveTypeOutput, error) {
	if input.Name == "" {
		return nil, &ServiceError{Code: CodeInvalidArgument, Message: "name is required"}
	}

	var within typeinfo.TypeInfo
	if input.Within != "" {
		w, ok := s.lib.ResolveType(input.Within, typeinfo.TypeInfo{})
		if !ok {
			return nil, &ServiceError{Code: CodeUnknownType, Message: fmt.Sprintf("type %q is not in the catalog", input.Within)}
		}
		within = w
	}

	t, ok := s.lib.ResolveType(input.Name, within)
	if !ok {
		return &ResolveTypeOutput{Resolved: false}, nil
	}
	if !within.IsZero() && !s.lib.Catalog().IsAssignable(t, within) {
		return &ResolveTypeOutput{Resolved: false}, nil
	}
	return &ResolveTypeOutput{Resolved: true, Type: t.Name(), Kind: t.Kind().String()}, nil
}
