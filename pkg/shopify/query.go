package shopify

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// UnfulfilledOrdersQuery fetches the most recent unfulfilled orders with their
// line items. There is no pagination: orders beyond the first 150, line items
// beyond the first 10 and metafields beyond the first 10 are not seen.
const UnfulfilledOrdersQuery = `query UnfulfilledOrders {
  orders(first: 150, query: "fulfillment_status:unfulfilled") {
    nodes {
      name
      id
      customer {
        displayName
        defaultAddress {
          address1
          address2
          city
          province
          zip
          country
        }
      }
      shippingAddress {
        address1
        address2
        city
        province
        zip
        country
        firstName
        lastName
        phone
      }
      lineItems(first: 10) {
        edges {
          node {
            title
            quantity
            originalUnitPriceSet {
              shopMoney {
                amount
                currencyCode
              }
            }
            variant {
              title
            }
            product {
              vendor
              metafields(first: 10, namespace: "custom") {
                edges {
                  node {
                    key
                    value
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

// ValidateQuery checks that q is a syntactically valid GraphQL document with
// exactly one operation.
func ValidateQuery(q string) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: q})
	if err != nil {
		return fmt.Errorf("invalid graphql query: %w", err)
	}
	if len(doc.Operations) != 1 {
		return fmt.Errorf("invalid graphql query: expected 1 operation, got %d", len(doc.Operations))
	}
	return nil
}
