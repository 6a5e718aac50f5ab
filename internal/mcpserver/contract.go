package mcpserver

// MappingFormatContract documents the mapping files written for every Source.
const MappingFormatContract = `# wikimapper mapping file format

Each Source directory receives three mapping files, one per candidate category:

| file                          | predicate                                          |
|-------------------------------|----------------------------------------------------|
| resource_<mapping file name>  | <http://www.w3.org/2002/07/owl#sameAs>             |
| property_<mapping file name>  | <http://www.w3.org/2002/07/owl#equivalentProperty> |
| class_<mapping file name>     | <http://www.w3.org/2002/07/owl#equivalentClass>    |

## Rows

One N-Triples style statement per line, sorted by candidate:

` + "```" + `
<{target namespace}/{source}/property/area> <http://www.w3.org/2002/07/owl#equivalentProperty> <http://dbpedia.org/ontology/area> .
<{target namespace}/{source}/resource/Atlantis> <http://www.w3.org/2002/07/owl#sameAs> <null> .
` + "```" + `

- The subject is the candidate URI moved into the Source namespace.
- The object is the resolved reference URI, or ` + "`<null>`" + ` when nothing matched.
  ` + "`<null>`" + ` rows are omitted when include_no_mapping is false.

## Candidates

- ` + "`/Template:`" + ` spans containing "infobox" (any case) are classes.
- ` + "`/resource/`" + ` spans are resources; ` + "`/property/`" + ` spans are properties.
- Spans mentioning wikipedia.org, commons.wikimedia.org or "category:" are ignored.

## Resolution order

1. Property: the ` + "`/ontology/`" + ` form, then the lower-cased property.
2. Resource: the URI itself, then the URI with its local name capitalized.
3. Class: the full UpperCamelCase class name, then its last word.
`
